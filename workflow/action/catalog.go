package action

// Descriptor describes an action kind for planners and API clients.
type Descriptor struct {
	Type        Kind     `json:"type"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

var catalog = []Descriptor{
	{
		Type:        KindWebScraper,
		Description: "Fetch content from URLs. Params: url, selector (optional)",
		Params:      []string{"url", "selector"},
	},
	{
		Type:        KindAIProcessor,
		Description: "Summarize, extract, or transform text using Gemini. Params: instruction, model_params (optional)",
		Params:      []string{"instruction", "model_params"},
	},
	{
		Type:        KindEmailSender,
		Description: "Send emails (Simulated). Params: recipient, subject, body_template",
		Params:      []string{"recipient", "subject", "body_template"},
	},
	{
		Type:        KindDataFilter,
		Description: "Filter/sort/deduplicate data. Params: condition, limit",
		Params:      []string{"condition", "limit"},
	},
	{
		Type:        KindScheduler,
		Description: "Time-based triggers. Params: cron_expression, description",
		Params:      []string{"cron_expression", "description"},
	},
	{
		Type:        KindAPICaller,
		Description: "Make HTTP requests. Params: url, method, headers, body",
		Params:      []string{"url", "method", "headers", "body"},
	},
}

// Catalog returns the descriptors of every action kind.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	for i, d := range catalog {
		d.Params = append([]string(nil), d.Params...)
		out[i] = d
	}
	return out
}
