package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowrunner/api"
	"github.com/BaSui01/flowrunner/config"
	"github.com/BaSui01/flowrunner/workflow"
)

const offlineConfig = `
llm:
  provider: none
log:
  level: error
executor:
  history: memory
`

const digestYAML = `
workflow_name: digest
nodes:
  - id: trigger_1
    action: scheduler
    params:
      cron: "0 9 * * *"
  - id: filter_1
    action: data_filter
    params:
      limit: 3
    depends_on: [trigger_1]
execution_order: [trigger_1, filter_1]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeLines(t *testing.T, out string) []api.StreamMessage {
	t.Helper()
	var msgs []api.StreamMessage
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var m api.StreamMessage
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		msgs = append(msgs, m)
	}
	return msgs
}

func TestExecute_VersionAndHelp(t *testing.T) {
	code, out, _ := runCLI("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "FlowRunner "+Version)

	code, out, _ = runCLI("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "flowrunner <command>")

	code, _, errOut := runCLI("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Unknown command: frobnicate")

	code, _, _ = runCLI()
	assert.Equal(t, 2, code)
}

func TestExecute_RunFile(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", offlineConfig)
	graphPath := writeFile(t, "digest.yaml", digestYAML)

	code, out, errOut := runCLI("run", "--file", graphPath, "--validate", "--config", cfgPath)
	require.Equal(t, 0, code, errOut)

	msgs := decodeLines(t, out)
	require.Len(t, msgs, 5)
	for _, m := range msgs[:4] {
		assert.Equal(t, "log", m.Type)
	}
	assert.Equal(t, "trigger_1", msgs[0].Log.NodeID)
	assert.Equal(t, workflow.LogStatusRunning, msgs[0].Log.Status)

	done := msgs[4]
	assert.Equal(t, "done", done.Type)
	require.NotNil(t, done.Result)
	assert.Equal(t, workflow.RunStatusSuccess, done.Result.Status)
	assert.Equal(t, "digest", done.Result.WorkflowName)
}

func TestExecute_RunErrors(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", offlineConfig)

	code, _, errOut := runCLI("run", "--config", cfgPath)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--file is required")

	code, _, _ = runCLI("run", "--file", filepath.Join(t.TempDir(), "missing.yaml"), "--config", cfgPath)
	assert.Equal(t, 1, code)

	// 未知动作在 --validate 下于执行前被拒绝，不输出任何日志
	bad := writeFile(t, "bad.yaml", `
workflow_name: bad
nodes:
  - id: a
    action: teleport
execution_order: [a]
`)
	code, out, errOut := runCLI("run", "--file", bad, "--validate", "--config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Error:")

	// 不校验时同一个图作为 failed 运行结束，退出码仍为 1
	code, out, _ = runCLI("run", "--file", bad, "--config", cfgPath)
	assert.Equal(t, 1, code)
	msgs := decodeLines(t, out)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.NotNil(t, last.Result)
	assert.NotEqual(t, workflow.RunStatusSuccess, last.Result.Status)
}

func TestExecute_PlanWithoutProvider(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", offlineConfig)

	code, out, errOut := runCLI("plan", "--prompt", "email me the news", "--config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "no LLM provider configured")

	code, _, _ = runCLI("plan", "--config", cfgPath)
	assert.Equal(t, 2, code)

	code, _, _ = runCLI("plan", "--prompt", "x", "--format", "toml", "--config", cfgPath)
	assert.Equal(t, 2, code)
}

func TestExecute_MigrateUsage(t *testing.T) {
	code, out, _ := runCLI("migrate", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "flowrunner migrate <command>")

	code, _, _ = runCLI("migrate")
	assert.Equal(t, 2, code)

	// sqlite 不走 golang-migrate
	code, _, errOut := runCLI("migrate", "up", "--db-type", "sqlite", "--db-url", "file::memory:")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "failed to create migrator")
}

func TestRunGraph_RecordsHistory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "none"
	a := newTestApp(t, cfg)

	graph, err := workflow.ParseGraphYAML([]byte(digestYAML))
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := runGraph(context.Background(), a, graph, true, &out)
	require.NoError(t, err)
	assert.Equal(t, workflow.RunStatusSuccess, result.Status)

	hist, err := a.history.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, workflow.HistoryStatusSuccess, hist.Status)
	assert.Len(t, hist.Nodes, 2)
}
