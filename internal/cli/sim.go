package cli

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/taptrack/taptrack/internal/record"
)

// SystemClock adapts the host clock to the controller's Clock contract.
// The monotonic counter starts at process start so interval arithmetic
// never sees wall-clock jumps.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock anchored at now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the host wall time as a plausibility-checkable reading.
func (c *SystemClock) Now() record.DateTime {
	t := time.Now()
	return record.DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// NowMillis returns milliseconds since process start.
func (c *SystemClock) NowMillis() int64 {
	return time.Since(c.start).Milliseconds()
}

// LineReader simulates the card reader: each line read from its input is
// one tap, the line's text being the card identifier. Typing a line raises
// the detect callback exactly like a card edge would.
type LineReader struct {
	mu       sync.Mutex
	pending  []string
	onDetect func()
}

// NewLineReader creates a reader fed by r. The detect callback is wired
// afterwards with SetOnDetect; lines scanned before then accumulate as
// pending taps.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{}
	go lr.scan(r)
	return lr
}

// SetOnDetect installs the card-present callback, invoked from the reading
// goroutine for every line.
func (lr *LineReader) SetOnDetect(fn func()) {
	lr.mu.Lock()
	lr.onDetect = fn
	lr.mu.Unlock()
}

func (lr *LineReader) scan(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		id := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if id == "" {
			continue
		}
		lr.mu.Lock()
		lr.pending = append(lr.pending, id)
		fn := lr.onDetect
		lr.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// TryReadIdentifier implements the card reader contract.
func (lr *LineReader) TryReadIdentifier() (string, bool) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if len(lr.pending) == 0 {
		return "", false
	}
	id := lr.pending[0]
	lr.pending = lr.pending[1:]
	return id, true
}
