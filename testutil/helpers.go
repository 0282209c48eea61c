// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertJSONEqual(t, expected, actual)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
//
// =============================================================================
package testutil

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertJSONEqual 断言两个值的 JSON 表示相等
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	var e, a any
	if err := json.Unmarshal([]byte(toJSON(t, expected)), &e); err != nil {
		t.Fatalf("failed to normalize expected: %v", err)
	}
	if err := json.Unmarshal([]byte(toJSON(t, actual)), &a); err != nil {
		t.Fatalf("failed to normalize actual: %v", err)
	}
	if !reflect.DeepEqual(e, a) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", toJSON(t, expected), toJSON(t, actual))
	}
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return string(data)
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition not met within %v", timeout)
	}
}

// =============================================================================
// ⏱️ 时间辅助
// =============================================================================

// WaitFor 等待条件满足或超时
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// DrainChannel 读取通道直到关闭或超时
func DrainChannel[T any](ch <-chan T, timeout time.Duration) []T {
	var out []T
	deadline := time.After(timeout)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-deadline:
			return out
		}
	}
}

// =============================================================================
// 🔧 测试数据辅助
// =============================================================================

// SampleGraphJSON 是规划器示例中的 "Daily TechCrunch Summary" 工作流
const SampleGraphJSON = `{
  "workflow_name": "Daily TechCrunch Summary",
  "nodes": [
    {"id": "trigger_1", "action": "scheduler", "params": {"cron": "0 8 * * *"}, "depends_on": []},
    {"id": "scraper_1", "action": "web_scraper", "params": {"url": "https://techcrunch.com"}, "depends_on": ["trigger_1"]},
    {"id": "ai_1", "action": "ai_processor", "params": {"instruction": "Summarize the top headlines"}, "depends_on": ["scraper_1"]},
    {"id": "email_1", "action": "email_sender", "params": {"recipient": "user@example.com", "subject": "Daily Tech News"}, "depends_on": ["ai_1"]}
  ],
  "execution_order": ["trigger_1", "scraper_1", "ai_1", "email_1"]
}`
