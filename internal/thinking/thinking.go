// Package thinking splits an assistant message into the reasoning blocks a model wraps in
// <thinking>...</thinking> (or <think>...</think>) and the answer text around them.
//
// Split is a pure function of the buffer, so it can be re-run every time a fragment is appended to a
// growing message and the already-stable prefix always segments the same way.
package thinking

import "strings"

// Kind is the type of a segment.
type Kind string

const (
	// KindNormal is answer text outside any thinking block.
	KindNormal Kind = "normal"
	// KindThinking is the interior of a delimited thinking block.
	KindThinking Kind = "thinking"
)

// Delimiter is one accepted spelling of the open/close pair around a thinking block.
type Delimiter struct {
	Open  string
	Close string
}

// Delimiters lists the accepted spellings. The structured system prompt asks the model for the first
// one; some reasoning models emit the second on their own.
var Delimiters = []Delimiter{
	{Open: "<thinking>", Close: "</thinking>"},
	{Open: "<think>", Close: "</think>"},
}

// Segment is a typed run of text inside a message.
type Segment struct {
	Kind Kind
	// Text is the segment text. For thinking segments it is trimmed of surrounding whitespace.
	Text string

	raw   string
	delim int
}

// Split scans buf and returns its segments in order. A buffer without any complete block yields a
// single normal segment holding the whole buffer.
func Split(buf string) []Segment {
	var segs []Segment
	s := scanner{buf: buf}
	for {
		start, end, d, ok := s.next()
		if !ok {
			break
		}
		if start > s.pos {
			segs = append(segs, Segment{Kind: KindNormal, Text: buf[s.pos:start]})
		}
		inner := buf[start+len(Delimiters[d].Open) : end]
		segs = append(segs, Segment{
			Kind:  KindThinking,
			Text:  strings.TrimSpace(inner),
			raw:   inner,
			delim: d,
		})
		s.pos = end + len(Delimiters[d].Close)
	}
	if s.pos < len(buf) {
		segs = append(segs, Segment{Kind: KindNormal, Text: buf[s.pos:]})
	}
	if len(segs) == 0 {
		return []Segment{{Kind: KindNormal, Text: buf}}
	}
	return segs
}

// Join rebuilds the buffer that produced segs, re-inserting each block's original delimiters and
// untrimmed interior.
func Join(segs []Segment) string {
	var sb strings.Builder
	for _, seg := range segs {
		if seg.Kind != KindThinking {
			sb.WriteString(seg.Text)
			continue
		}
		d := Delimiters[seg.delim]
		raw := seg.raw
		if raw == "" {
			raw = seg.Text
		}
		sb.WriteString(d.Open)
		sb.WriteString(raw)
		sb.WriteString(d.Close)
	}
	return sb.String()
}

// HasOpenBlock reports whether buf ends inside a thinking block whose closer has not arrived yet.
// Renderers use it to show a "thinking" indicator while the block is still streaming.
func HasOpenBlock(buf string) bool {
	s := scanner{buf: buf}
	for {
		_, end, d, ok := s.next()
		if !ok {
			break
		}
		s.pos = end + len(Delimiters[d].Close)
	}
	for _, d := range Delimiters {
		if strings.Contains(buf[s.pos:], d.Open) {
			return true
		}
	}
	return false
}

// scanner is the two-state (outside / inside) walk over buf. Outside, it looks for the earliest
// opener; inside, for that opener's closer. An opener whose closer never comes is treated as plain
// text and the outside search resumes one byte after it.
type scanner struct {
	buf string
	pos int
}

// next finds the next complete block at or after s.pos. It returns the offset of the opener, the
// offset of the closer and the index of the delimiter spelling. s.pos is left untouched.
func (s *scanner) next() (start, end, delim int, ok bool) {
	from := s.pos
	for from < len(s.buf) {
		// outside: earliest opener of any spelling
		start, delim = -1, -1
		for i, d := range Delimiters {
			idx := strings.Index(s.buf[from:], d.Open)
			if idx < 0 {
				continue
			}
			if start < 0 || from+idx < start {
				start, delim = from+idx, i
			}
		}
		if start < 0 {
			return 0, 0, 0, false
		}

		// inside: the matching closer
		body := start + len(Delimiters[delim].Open)
		if idx := strings.Index(s.buf[body:], Delimiters[delim].Close); idx >= 0 {
			return start, body + idx, delim, true
		}

		// unclosed opener: plain text
		from = start + 1
	}
	return 0, 0, 0, false
}
