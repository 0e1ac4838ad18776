package chatclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tmaxmax/go-sse"
)

// Sentinel is the data payload of the frame the relay writes after the last fragment.
const Sentinel = "[DONE]"

type fragment struct {
	Content string `json:"content"`
}

// ReadStream reads relay frames from r until EOF and calls onFragment with the content of each
// complete data line, in order. Lines may arrive split across any number of reads. A trailing line
// cut off by the end of the stream is dropped, and a payload that is not valid JSON is logged and
// skipped.
//
// The sentinel does not stop the loop: the stream ends when r does, and sawSentinel reports whether
// the sentinel was seen on the way. A read error other than EOF is returned.
func ReadStream(r io.Reader, logger *slog.Logger, onFragment func(string)) (sawSentinel bool, err error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	lr := &lineReader{br: bufio.NewReader(r)}
	for ev, err := range sse.Read(lr, nil) {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return sawSentinel, fmt.Errorf("failed to read stream: %w", err)
		}

		// One event may carry several data lines; each is a frame of its own.
		for _, data := range strings.Split(ev.Data, "\n") {
			if data == "" {
				continue
			}
			if data == Sentinel {
				sawSentinel = true
				continue
			}

			var f fragment
			if err := json.Unmarshal([]byte(data), &f); err != nil {
				logger.Warn("Skipping malformed frame",
					slog.String("data", data),
					slog.String("err", err.Error()))
				continue
			}
			if f.Content == "" {
				continue
			}
			onFragment(f.Content)
		}
	}

	if lr.err != nil {
		return sawSentinel, fmt.Errorf("failed to read stream: %w", lr.err)
	}
	return sawSentinel, nil
}

// lineReader hands out only newline-terminated lines. When the underlying reader ends or fails, the
// incomplete tail is dropped and io.EOF is reported, so the parser always sees a clean end. A
// failure other than EOF is kept in err.
type lineReader struct {
	br      *bufio.Reader
	pending string
	done    bool
	err     error
}

func (l *lineReader) Read(p []byte) (int, error) {
	if l.pending == "" {
		if l.done {
			return 0, io.EOF
		}
		line, err := l.br.ReadString('\n')
		if err != nil {
			l.done = true
			if !errors.Is(err, io.EOF) {
				l.err = err
			}
			return 0, io.EOF
		}
		l.pending = line
	}

	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}
