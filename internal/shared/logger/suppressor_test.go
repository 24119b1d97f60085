package logger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordedLine struct {
	level string
	msg   string
	kv    []interface{}
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []recordedLine
}

func (l *recordingLogger) record(level, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, recordedLine{level: level, msg: msg, kv: kv})
}

func (l *recordingLogger) Debugw(msg string, kv ...interface{}) { l.record("debug", msg, kv) }
func (l *recordingLogger) Infow(msg string, kv ...interface{})  { l.record("info", msg, kv) }
func (l *recordingLogger) Warnw(msg string, kv ...interface{})  { l.record("warn", msg, kv) }
func (l *recordingLogger) Errorw(msg string, kv ...interface{}) { l.record("error", msg, kv) }
func (l *recordingLogger) Fatalw(msg string, kv ...interface{}) { l.record("fatal", msg, kv) }
func (l *recordingLogger) With(args ...any) Interface           { return l }
func (l *recordingLogger) Named(name string) Interface          { return l }

func (l *recordingLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.msg == msg {
			n++
		}
	}
	return n
}

func (l *recordingLogger) find(msg string) (recordedLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.msg == msg {
			return line, true
		}
	}
	return recordedLine{}, false
}

func TestSuppressorDropsRepeatsPastThreshold(t *testing.T) {
	inner := &recordingLogger{}
	s := NewSuppressor(inner, 3, time.Minute)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.state.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		s.Errorw("router command failed", "attempt", i)
	}

	assert.Equal(t, 3, inner.count("router command failed"))

	// A different message has its own window.
	s.Errorw("pool slot unhealthy")
	assert.Equal(t, 1, inner.count("pool slot unhealthy"))
}

func TestSuppressorSummarizesOnWindowRollover(t *testing.T) {
	inner := &recordingLogger{}
	s := NewSuppressor(inner, 2, time.Minute)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.state.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		s.Warnw("router unreachable")
	}
	assert.Equal(t, 2, inner.count("router unreachable"))

	// The rollover emits one summary carrying the dropped count, then the
	// message passes again.
	now = now.Add(2 * time.Minute)
	s.Warnw("router unreachable")

	summary, ok := inner.find("repeated log suppressed")
	assert.True(t, ok)
	if ok {
		assert.Contains(t, summary.kv, "suppressed")
		assert.Contains(t, summary.kv, 4)
	}
	assert.Equal(t, 3, inner.count("router unreachable"))
}

func TestSuppressorDefaultsWhenMisconfigured(t *testing.T) {
	inner := &recordingLogger{}
	s := NewSuppressor(inner, 0, 0)

	assert.Equal(t, 5, s.state.threshold)
	assert.Equal(t, time.Minute, s.state.window)
}
