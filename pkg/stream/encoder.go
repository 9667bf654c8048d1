package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

var escaper = strings.NewReplacer(`"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// Encoder writes the data-stream framing that Normalizer reads. Quotes, CR,
// LF and tabs are escaped. The framing has no escape for a backslash, so
// text that already contains `\n`, `\t`, `\r` or `\"` is read back as the
// control character or quote instead.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Text writes a content line.
func (e *Encoder) Text(s string) error {
	_, err := fmt.Fprintf(e.w, "0:\"%s\"\n", escaper.Replace(s))
	return err
}

// Error writes an upstream error line.
func (e *Encoder) Error(msg string) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.w, "3:%s\n", b)
	return err
}

// Finish writes the finish metadata line.
func (e *Encoder) Finish(reason string) error {
	b, err := json.Marshal(map[string]string{"finishReason": reason})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.w, "d:%s\n", b)
	return err
}
