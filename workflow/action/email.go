package action

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/BaSui01/flowrunner/types"
	"go.uber.org/zap"
)

const (
	DefaultRecipient = "me@example.com"
	defaultSubject   = "Workflow Update"
	previewRunes     = 50
)

// EmailParams are the params of an email_sender node.
type EmailParams struct {
	Recipient    string `json:"recipient"`
	Subject      string `json:"subject"`
	BodyTemplate string `json:"body_template"`
}

// EmailConfig configures the email_sender handler.
type EmailConfig struct {
	DefaultRecipient string
}

// templateData is what subject and body templates can reference.
type templateData struct {
	Input     any
	Content   string
	Recipient string
	Date      string
	RunID     string
}

// EmailSender hands a message to the configured Mailer.
type EmailSender struct {
	cfg    EmailConfig
	mailer Mailer
	now    func() time.Time
	logger *zap.Logger
}

func NewEmailSender(cfg EmailConfig, mailer Mailer, now func() time.Time, logger *zap.Logger) *EmailSender {
	if cfg.DefaultRecipient == "" {
		cfg.DefaultRecipient = DefaultRecipient
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	if now == nil {
		now = time.Now
	}
	return &EmailSender{cfg: cfg, mailer: mailer, now: now, logger: logger}
}

func (e *EmailSender) Kind() Kind { return KindEmailSender }

func (e *EmailSender) Handle(ctx context.Context, params map[string]any, input any) (any, error) {
	var p EmailParams
	if err := DecodeParams(params, &p); err != nil {
		e.logger.Warn("email_sender params ignored", zap.Error(err))
		p = EmailParams{}
	}
	return e.Run(ctx, p, input)
}

func (e *EmailSender) Run(ctx context.Context, p EmailParams, input any) (map[string]any, error) {
	recipient := strings.TrimSpace(p.Recipient)
	if recipient == "" {
		recipient = e.cfg.DefaultRecipient
	}

	now := e.now()
	content := Stringify(input)
	runID, _ := types.RunID(ctx)
	data := templateData{
		Input:     input,
		Content:   content,
		Recipient: recipient,
		Date:      now.Format("2006-01-02"),
		RunID:     runID,
	}

	subject := e.render("subject", p.Subject, data)
	if subject == "" {
		subject = defaultSubject
	}
	body := content
	if p.BodyTemplate != "" {
		body = e.render("body", p.BodyTemplate, data)
	}

	msg := Message{
		RunID:     runID,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		CreatedAt: now,
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("email_sender: %s backend: %w", e.mailer.Name(), err)
	}

	return map[string]any{
		"sent":            true,
		"recipient":       recipient,
		"subject":         subject,
		"timestamp":       now.UnixMilli(),
		"content_preview": truncateRunes(content, previewRunes) + "...",
	}, nil
}

// render 渲染模板；模板无效时原样返回文本
func (e *EmailSender) render(name, text string, data templateData) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		e.logger.Warn("email template invalid, using raw text", zap.String("template", name), zap.Error(err))
		return text
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		e.logger.Warn("email template failed, using raw text", zap.String("template", name), zap.Error(err))
		return text
	}
	return b.String()
}
