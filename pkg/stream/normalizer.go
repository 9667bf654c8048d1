// Package stream extracts plain text from the line-prefixed data-stream
// framing used by AI text-generation endpoints.
//
// Each line carries a one-character role tag followed by a colon:
//
//	0:"text"   content fragment (quoted, with \" \n \r \t escapes)
//	3:"msg"    error reported by the upstream
//	f: e: d:   framing metadata (message start, step end, finish)
package stream

import (
	"bytes"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// MaxLineBytes bounds how much of an unterminated line a Normalizer holds.
// It matches the NDJSON line limit of the socket transport.
const MaxLineBytes = 1024 * 1024

var unescaper = strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\r`, "\r", `\t`, "\t")

// Normalizer converts raw stream chunks into content fragments. It holds the
// tail of a line that has not seen its newline yet, so a line (and any
// multi-byte character in it) split across chunks is reassembled before it
// is decoded. Use one Normalizer per stream.
type Normalizer struct {
	logger     *slog.Logger
	partial    []byte
	discarding bool
}

// NewNormalizer creates a normalizer for a single stream.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Push consumes the next chunk and returns the content fragments completed by
// it, in arrival order.
func (n *Normalizer) Push(chunk []byte) []string {
	var out []string
	for {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			n.hold(chunk)
			return out
		}
		seg := chunk[:i]
		chunk = chunk[i+1:]

		if n.discarding {
			n.discarding = false
			continue
		}

		line := seg
		if len(n.partial) > 0 {
			n.partial = append(n.partial, seg...)
			line = n.partial
		}
		if frag, ok := n.decodeLine(string(line)); ok {
			out = append(out, frag)
		}
		n.partial = n.partial[:0]
	}
}

// Flush ends the stream. A held line without a trailing newline is decoded
// as-is; an incomplete multi-byte character at the very end is dropped.
func (n *Normalizer) Flush() []string {
	defer n.Reset()
	if n.discarding || len(n.partial) == 0 {
		return nil
	}

	line, tail := splitIncompleteRune(n.partial)
	if len(tail) > 0 {
		n.logger.Warn("stream ended inside a multi-byte character", "bytes", len(tail))
	}
	if frag, ok := n.decodeLine(string(line)); ok {
		return []string{frag}
	}
	return nil
}

// Reset discards any held state so the normalizer can serve a new stream.
func (n *Normalizer) Reset() {
	n.partial = n.partial[:0]
	n.discarding = false
}

func (n *Normalizer) hold(b []byte) {
	if n.discarding || len(b) == 0 {
		return
	}
	if len(n.partial)+len(b) > MaxLineBytes {
		n.logger.Warn("dropping oversized stream line", "bytes", len(n.partial)+len(b))
		n.partial = n.partial[:0]
		n.discarding = true
		return
	}
	n.partial = append(n.partial, b...)
}

func (n *Normalizer) decodeLine(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, "�")
	}

	switch {
	case strings.HasPrefix(line, "0:"):
		if len(line) < 4 {
			return "", false
		}
		text := unescaper.Replace(line[3 : len(line)-1])
		return text, text != ""
	case strings.HasPrefix(line, "3:"):
		n.logger.Error("error in AI response", "detail", line[2:])
	case strings.HasPrefix(line, "f:"), strings.HasPrefix(line, "e:"), strings.HasPrefix(line, "d:"):
	default:
		n.logger.Warn("unknown line format in AI response", "line", clip(line, 200))
	}
	return "", false
}

// splitIncompleteRune separates a trailing partial UTF-8 sequence from b.
func splitIncompleteRune(b []byte) (complete, tail []byte) {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i], b[len(b)-i:]
		}
		break
	}
	return b, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
