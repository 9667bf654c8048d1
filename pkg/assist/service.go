package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modoterra/lifedash/pkg/stream"
)

var (
	ErrNoProvider = errors.New("no assist provider configured")
	ErrEmptyText  = errors.New("nothing to rephrase")
)

// Service rephrases text through a provider.
type Service struct {
	provider Provider
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewService creates a service. provider may be nil, in which case every
// request fails with ErrNoProvider. language is used when a request names
// none; timeout bounds a whole request when positive.
func NewService(provider Provider, language string, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if language == "" {
		language = "English"
	}
	return &Service{provider: provider, language: language, timeout: timeout, logger: logger}
}

// Available reports whether a provider is configured.
func (s *Service) Available() bool { return s.provider != nil }

// Rephrase streams the rephrased text to emit fragment by fragment.
func (s *Service) Rephrase(ctx context.Context, text, lang string, emit func(string) error) error {
	if s.provider == nil {
		return ErrNoProvider
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if lang == "" {
		lang = s.language
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	req := Request{Prompt: BuildPrompt(text, lang), System: SystemPrompt}
	fragments := 0
	counted := func(frag string) error {
		fragments++
		return emit(frag)
	}

	var err error
	if fp, ok := s.provider.(FragmentProvider); ok {
		err = fp.Fragments(ctx, req, counted)
	} else {
		err = s.readStream(ctx, req, counted)
	}
	s.logger.Debug("rephrase finished", "provider", s.provider.Name(), "lang", lang,
		"fragments", fragments, "elapsed", time.Since(start), "err", err)
	if err != nil {
		return fmt.Errorf("rephrase via %s: %w", s.provider.Name(), err)
	}
	return nil
}

// readStream reads the provider's data-stream body through the normalizer.
func (s *Service) readStream(ctx context.Context, req Request, emit func(string) error) error {
	body, err := s.provider.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()
	return stream.Fragments(ctx, body, s.logger.With("provider", s.provider.Name()), emit)
}
