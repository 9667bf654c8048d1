package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

const readChunk = 32 * 1024

// Reader exposes the content of a framed stream as plain text.
type Reader struct {
	src  io.Reader
	norm *Normalizer
	raw  []byte
	out  []byte
	err  error
}

// NewReader wraps src, a framed stream body.
func NewReader(src io.Reader, logger *slog.Logger) *Reader {
	return &Reader{
		src:  src,
		norm: NewNormalizer(logger),
		raw:  make([]byte, readChunk),
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		k, err := r.src.Read(r.raw)
		if k > 0 {
			for _, frag := range r.norm.Push(r.raw[:k]) {
				r.out = append(r.out, frag...)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				for _, frag := range r.norm.Flush() {
					r.out = append(r.out, frag...)
				}
			}
			r.err = err
		}
	}
	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}

// Fragments reads src chunk by chunk and calls emit for every content
// fragment as soon as its line is complete. It stops at EOF, on a read error,
// when emit fails, or when ctx is done.
func Fragments(ctx context.Context, src io.Reader, logger *slog.Logger, emit func(string) error) error {
	norm := NewNormalizer(logger)
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		k, readErr := src.Read(buf)
		if k > 0 {
			for _, frag := range norm.Push(buf[:k]) {
				if err := emit(frag); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				return readErr
			}
			for _, frag := range norm.Flush() {
				if err := emit(frag); err != nil {
					return err
				}
			}
			return nil
		}
	}
}

// Copy writes every content fragment of src to dst and returns the number of
// bytes written.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, logger *slog.Logger) (int64, error) {
	var written int64
	err := Fragments(ctx, src, logger, func(frag string) error {
		n, err := io.WriteString(dst, frag)
		written += int64(n)
		return err
	})
	return written, err
}
