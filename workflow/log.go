package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// LogStatus is the lifecycle state carried by an ExecutionLog.
type LogStatus string

const (
	LogStatusPending LogStatus = "pending"
	LogStatusRunning LogStatus = "running"
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
	// LogStatusSkipped 保留给观察者使用；执行器本身从不发出该状态
	LogStatusSkipped LogStatus = "skipped"
)

// IsTerminal reports whether no further logs follow for the node.
func (s LogStatus) IsTerminal() bool {
	return s == LogStatusSuccess || s == LogStatusError || s == LogStatusSkipped
}

// ExecutionLog is one status event for one node. Times are epoch milliseconds.
type ExecutionLog struct {
	NodeID    string    `json:"nodeId"`
	Status    LogStatus `json:"status"`
	Output    any       `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartTime int64     `json:"startTime,omitempty"`
	EndTime   int64     `json:"endTime,omitempty"`
}

// successLog mirrors ExecutionLog but always writes the output key.
type successLog struct {
	NodeID    string    `json:"nodeId"`
	Status    LogStatus `json:"status"`
	Output    any       `json:"output"`
	Error     string    `json:"error,omitempty"`
	StartTime int64     `json:"startTime,omitempty"`
	EndTime   int64     `json:"endTime,omitempty"`
}

// MarshalJSON writes "output" on every success log, null included; other
// statuses omit it when empty.
func (l ExecutionLog) MarshalJSON() ([]byte, error) {
	if l.Status == LogStatusSuccess {
		return json.Marshal(successLog(l))
	}
	type plain ExecutionLog
	return json.Marshal(plain(l))
}

func epochMillis(t time.Time) int64 { return t.UnixMilli() }

// LogSink receives execution logs in emission order. Emit is called
// synchronously from the executor goroutine.
type LogSink interface {
	Emit(log ExecutionLog)
}

// SinkFunc adapts a function to LogSink.
type SinkFunc func(log ExecutionLog)

func (f SinkFunc) Emit(log ExecutionLog) { f(log) }

type nopSink struct{}

func (nopSink) Emit(ExecutionLog) {}

// MultiSink fans every log out to each sink in order.
type MultiSink []LogSink

func (m MultiSink) Emit(log ExecutionLog) {
	for _, s := range m {
		if s != nil {
			s.Emit(log)
		}
	}
}

// ChannelSink forwards logs to a buffered channel. Emit blocks while the
// buffer is full and never drops a log; once ctx is done further logs are
// discarded so a vanished consumer cannot wedge the run.
type ChannelSink struct {
	ctx  context.Context
	ch   chan ExecutionLog
	once sync.Once
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(ctx context.Context, buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ctx: ctx, ch: make(chan ExecutionLog, buffer)}
}

// Logs returns the receive side of the channel.
func (s *ChannelSink) Logs() <-chan ExecutionLog { return s.ch }

func (s *ChannelSink) Emit(log ExecutionLog) {
	select {
	case s.ch <- log:
	case <-s.ctx.Done():
	}
}

// Close closes the channel; call it after Run returns.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.ch) })
}

// CollectSink keeps every log in memory. It is safe for concurrent readers.
type CollectSink struct {
	mu   sync.Mutex
	logs []ExecutionLog
}

func (s *CollectSink) Emit(log ExecutionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
}

// Logs returns a copy of the collected logs.
func (s *CollectSink) Logs() []ExecutionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExecutionLog(nil), s.logs...)
}
