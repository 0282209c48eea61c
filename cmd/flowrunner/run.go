package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/flowrunner/api"
	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow"
)

// =============================================================================
// ▶️ run 命令
// =============================================================================

// runWorkflow 执行工作流文件。每条日志以一行 JSON 写入 stdout，
// 最后一行为 done 消息；运行未成功时返回错误（退出码 1）。
func runWorkflow(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "Workflow file (.json, .yaml, .yml or .hcl)")
	validate := fs.Bool("validate", false, "Validate the graph before executing")
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *file == "" {
		fmt.Fprintln(stderr, "run: --file is required")
		return errUsage
	}

	graph, err := workflow.LoadGraphFile(*file)
	if err != nil {
		return err
	}

	a, logger, err := cliApp(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer closeApp(a)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := runGraph(ctx, a, graph, *validate, stdout)
	if err != nil {
		return err
	}
	if result.Status != workflow.RunStatusSuccess {
		return fmt.Errorf("run %s %s: %s", result.RunID, result.Status, result.Error)
	}
	return nil
}

// runGraph 执行 graph 并以 JSON Lines 输出日志与最终结果
func runGraph(ctx context.Context, a *app, graph *workflow.Graph, validate bool, stdout io.Writer) (*workflow.RunResult, error) {
	if validate {
		if err := workflow.Validate(graph); err != nil {
			return nil, err
		}
	}

	enc := json.NewEncoder(stdout)
	var writeErr error
	printer := workflow.SinkFunc(func(log workflow.ExecutionLog) {
		if writeErr == nil {
			writeErr = enc.Encode(api.StreamMessage{Type: "log", Log: &log})
		}
	})

	runID := uuid.NewString()
	sink := workflow.LogSink(printer)
	var recorder *workflow.HistoryRecorder
	if a.history != nil {
		recorder = workflow.NewHistoryRecorder(runID, graph)
		sink = workflow.MultiSink{recorder, printer}
	}

	if a.cfg.Executor.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Executor.RunTimeout)
		defer cancel()
	}

	result := a.executor.Run(types.WithRunID(ctx, runID), graph, sink)

	if recorder != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.history.Save(saveCtx, recorder.Complete(result)); err != nil {
			a.logger.Warn("failed to save run history", zap.String("run_id", runID), zap.Error(err))
		}
	}

	resp := api.NewRunResponse(result, nil)
	if err := enc.Encode(api.StreamMessage{Type: "done", Result: &resp}); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return result, fmt.Errorf("write output: %w", writeErr)
	}
	return result, nil
}

// =============================================================================
// 🧭 plan 命令
// =============================================================================

func runPlan(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prompt := fs.String("prompt", "", "Natural-language workflow description")
	format := fs.String("format", "json", "Output format: json or yaml")
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *prompt == "" {
		fmt.Fprintln(stderr, "plan: --prompt is required")
		return errUsage
	}
	if *format != "json" && *format != "yaml" {
		fmt.Fprintf(stderr, "plan: unknown format %q\n", *format)
		return errUsage
	}

	a, logger, err := cliApp(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer closeApp(a)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	graph, err := a.planner.Generate(ctx, *prompt)
	if err != nil {
		return err
	}
	return writeGraph(stdout, graph, *format)
}

func writeGraph(w io.Writer, graph *workflow.Graph, format string) error {
	var (
		data []byte
		err  error
	)
	if format == "yaml" {
		data, err = graph.ToYAML()
	} else {
		data, err = graph.ToJSON()
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// cliApp 为一次性命令装配组件。stdout 用于结果输出，日志固定写 stderr。
func cliApp(configPath string) (*app, *zap.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Log.OutputPaths = []string{"stderr"}
	logger := initLogger(cfg.Log)

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}

func closeApp(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.logger.Warn("shutdown error", zap.Error(err))
	}
}
