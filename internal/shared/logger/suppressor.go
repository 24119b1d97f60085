package logger

import (
	"sync"
	"time"
)

// Suppressor rate-limits repetitive log messages by message key. Within a
// sliding window the first threshold occurrences pass through; the rest are
// dropped and summarized in a single line when the window rolls over.
type Suppressor struct {
	inner Interface
	state *suppressState
}

type suppressState struct {
	threshold int
	window    time.Duration

	mu      sync.Mutex
	entries map[string]*suppressEntry
	now     func() time.Time
}

type suppressEntry struct {
	windowStart time.Time
	count       int
}

func NewSuppressor(inner Interface, threshold int, window time.Duration) *Suppressor {
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Suppressor{
		inner: inner,
		state: &suppressState{
			threshold: threshold,
			window:    window,
			entries:   make(map[string]*suppressEntry),
			now:       time.Now,
		},
	}
}

// allow reports whether the message should be emitted now. When a window
// expires with suppressed repeats, the overflow count is returned so the
// caller can emit one summary line.
func (st *suppressState) allow(msg string) (bool, int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	e, ok := st.entries[msg]
	if !ok || now.Sub(e.windowStart) >= st.window {
		suppressed := 0
		if ok && e.count > st.threshold {
			suppressed = e.count - st.threshold
		}
		st.entries[msg] = &suppressEntry{windowStart: now, count: 1}
		return true, suppressed
	}

	e.count++
	return e.count <= st.threshold, 0
}

func (s *Suppressor) emit(msg string, log func(string, ...interface{}), keysAndValues ...interface{}) {
	ok, suppressed := s.state.allow(msg)
	if suppressed > 0 {
		s.inner.Warnw("repeated log suppressed",
			"message", msg,
			"suppressed", suppressed,
			"window", s.state.window.String(),
		)
	}
	if ok {
		log(msg, keysAndValues...)
	}
}

func (s *Suppressor) Debugw(msg string, keysAndValues ...interface{}) {
	s.emit(msg, s.inner.Debugw, keysAndValues...)
}

func (s *Suppressor) Infow(msg string, keysAndValues ...interface{}) {
	s.emit(msg, s.inner.Infow, keysAndValues...)
}

func (s *Suppressor) Warnw(msg string, keysAndValues ...interface{}) {
	s.emit(msg, s.inner.Warnw, keysAndValues...)
}

func (s *Suppressor) Errorw(msg string, keysAndValues ...interface{}) {
	s.emit(msg, s.inner.Errorw, keysAndValues...)
}

func (s *Suppressor) Fatalw(msg string, keysAndValues ...interface{}) {
	s.inner.Fatalw(msg, keysAndValues...)
}

func (s *Suppressor) With(args ...any) Interface {
	return &Suppressor{inner: s.inner.With(args...), state: s.state}
}

func (s *Suppressor) Named(name string) Interface {
	return &Suppressor{inner: s.inner.Named(name), state: s.state}
}
