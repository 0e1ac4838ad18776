package chatclient_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/MegaGrindStone/stream-chat-ui/internal/chatclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns its chunks one Read at a time, regardless of frame boundaries.
type chunkReader struct {
	chunks []string
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if c.chunks[0] == "" {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func readAll(t *testing.T, r io.Reader) ([]string, bool, error) {
	t.Helper()
	var got []string
	saw, err := chatclient.ReadStream(r, nil, func(s string) { got = append(got, s) })
	return got, saw, err
}

func TestReadStreamSplitFrame(t *testing.T) {
	got, saw, err := readAll(t, &chunkReader{chunks: []string{
		`data: {"con`,
		`tent":"hi"}` + "\n\n",
	}})
	require.NoError(t, err)
	assert.False(t, saw)
	assert.Equal(t, []string{"hi"}, got)
}

func TestReadStreamOneByteAtATime(t *testing.T) {
	stream := "data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo \\\"you\\\"\"}\n\ndata: [DONE]\n\n"
	got, saw, err := readAll(t, iotest.OneByteReader(strings.NewReader(stream)))
	require.NoError(t, err)
	assert.True(t, saw)
	assert.Equal(t, "Hello \"you\"", strings.Join(got, ""))
}

func TestReadStreamSkipsMalformedFrame(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, nil))

	stream := "data: {\"content\":\"a\"}\n\ndata: not-json\n\ndata: {\"content\":\"b\"}\n\ndata: [DONE]\n\n"
	var got []string
	saw, err := chatclient.ReadStream(strings.NewReader(stream), l, func(s string) { got = append(got, s) })
	require.NoError(t, err)
	assert.True(t, saw)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Contains(t, logs.String(), "Skipping malformed frame")
	assert.Contains(t, logs.String(), "not-json")
}

func TestReadStreamSentinelAndEOF(t *testing.T) {
	tests := []struct {
		name     string
		stream   string
		want     []string
		sentinel bool
	}{
		{
			name:     "sentinel then EOF",
			stream:   "data: {\"content\":\"x\"}\n\ndata: [DONE]\n\n",
			want:     []string{"x"},
			sentinel: true,
		},
		{
			name:   "EOF without sentinel",
			stream: "data: {\"content\":\"x\"}\n\n",
			want:   []string{"x"},
		},
		{
			name:     "frames after the sentinel are still applied",
			stream:   "data: {\"content\":\"x\"}\n\ndata: [DONE]\n\ndata: {\"content\":\"y\"}\n\n",
			want:     []string{"x", "y"},
			sentinel: true,
		},
		{
			name:     "empty content is ignored",
			stream:   "data: {\"content\":\"\"}\n\ndata: {}\n\ndata: [DONE]\n\n",
			sentinel: true,
		},
		{
			name:     "several data lines in one event",
			stream:   "data: {\"content\":\"a\"}\ndata: {\"content\":\"b\"}\n\ndata: [DONE]\n\n",
			want:     []string{"a", "b"},
			sentinel: true,
		},
		{
			name:   "final line without newline is dropped",
			stream: "data: {\"content\":\"x\"}\n\ndata: {\"content\":\"y\"}",
			want:   []string{"x"},
		},
		{
			name:   "complete line before a cut-off line",
			stream: "data: {\"content\":\"x\"}\ndata: {\"content\":\"y",
			want:   []string{"x"},
		},
		{
			name:   "last event without blank line",
			stream: "data: {\"content\":\"x\"}\n",
			want:   []string{"x"},
		},
		{
			name:   "empty stream",
			stream: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, saw, err := readAll(t, strings.NewReader(tt.stream))
			require.NoError(t, err)
			assert.Equal(t, tt.sentinel, saw)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadStreamTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	got, saw, err := readAll(t, &chunkReader{
		chunks: []string{"data: {\"content\":\"partial\"}\n\n", "data: {\"cont"},
		err:    boom,
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, saw)
	assert.Equal(t, []string{"partial"}, got)
}

func TestReadStreamTransportErrorMidEvent(t *testing.T) {
	boom := errors.New("connection reset")
	got, _, err := readAll(t, &chunkReader{
		chunks: []string{"data: {\"content\":\"a\"}\n", "data: {\"content\":\"b\"}\n"},
		err:    boom,
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, got)
}
