package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noBackoff(int, *APIError) time.Duration { return time.Millisecond }

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("see you tomorrow", "Japanese")
	assert.Contains(t, p, "translated into Japanese:")
	assert.Contains(t, p, `Sentence: "see you tomorrow"`)
	assert.Contains(t, p, "natural and idiomatic in Japanese")
	assert.NotContains(t, p, "{text}")
	assert.NotContains(t, p, "{lang}")
	assert.True(t, strings.HasSuffix(p, `"see you tomorrow"`))
}

func TestBuildPromptLeavesPlaceholdersInText(t *testing.T) {
	p := BuildPrompt("literal {lang}", "English")
	assert.Contains(t, p, `"literal {lang}"`)
}

func TestHTTPProviderStreams(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, "0:\"Hel\"\n0:\"lo\"\nd:{\"finishReason\":\"stop\"}\n")
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, WithToken("secret"))
	body, err := p.Stream(context.Background(), Request{Prompt: "hi", System: SystemPrompt})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `0:"Hel"`)
	assert.Equal(t, Request{Prompt: "hi", System: SystemPrompt}, got)
}

func TestHTTPProviderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "0:\"ok\"\n")
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	p.backoff = noBackoff
	body, err := p.Stream(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	body.Close()
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPProviderGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	p.backoff = noBackoff
	_, err := p.Stream(context.Background(), Request{Prompt: "x"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "1", apiErr.retryAfter)
	assert.EqualValues(t, 4, calls.Load())
}

func TestHTTPProviderClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"Invalid input: requires prompt or messages"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL).Stream(context.Background(), Request{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "requires prompt")
	assert.EqualValues(t, 1, calls.Load())
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(1, nil))
	assert.Equal(t, 2*time.Second, backoffDelay(2, nil))
	assert.Equal(t, 4*time.Second, backoffDelay(3, &APIError{StatusCode: 502}))
	assert.Equal(t, 7*time.Second, backoffDelay(1, &APIError{StatusCode: 429, retryAfter: "7"}))
	assert.Equal(t, time.Second, backoffDelay(1, &APIError{StatusCode: 429, retryAfter: "soon"}))
}

func openAIServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.True(t, req.Stream)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, SystemPrompt, req.Messages[0].Content)
			assert.Equal(t, "user", req.Messages[1].Role)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func delta(content, finish string) string {
	choice := map[string]any{"index": 0, "delta": map[string]string{"content": content}}
	if finish != "" {
		choice["finish_reason"] = finish
	}
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"model":   "gpt-4o-mini",
		"choices": []any{choice},
	})
	return string(b)
}

func TestOpenAIProviderReframesDeltas(t *testing.T) {
	srv := openAIServer(t, delta("1. Sampai \"jumpa\"", ""), delta("\n2. Besok", ""), delta("", "stop"))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-4o-mini", srv.URL+"/v1")
	body, err := p.Stream(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t,
		"0:\"1. Sampai \\\"jumpa\\\"\"\n0:\"\\n2. Besok\"\nd:{\"finishReason\":\"stop\"}\n",
		string(raw))
}

func TestOpenAIProviderFragmentsKeepBackslashes(t *testing.T) {
	srv := openAIServer(t, delta(`C:\new`, ""), delta(`\table`, ""), delta(` regex \d+\n "\t"`, ""), delta("", "stop"))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-4o-mini", srv.URL+"/v1")
	svc := NewService(p, "English", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var out []string
	err := svc.Rephrase(context.Background(), "path", "", func(s string) error {
		out = append(out, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\new`, `\table`, ` regex \d+\n "\t"`}, out)
	assert.Equal(t, `C:\new\table regex \d+\n "\t"`, strings.Join(out, ""))
}

func TestOpenAIProviderFailsMidStream(t *testing.T) {
	srv := openAIServer(t, delta("Hel", ""), `{"choices": [`)
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-4o-mini", srv.URL+"/v1")

	var out []string
	err := NewService(p, "", 0, nil).Rephrase(context.Background(), "x", "", func(s string) error {
		out = append(out, s)
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai stream")
	assert.Equal(t, []string{"Hel"}, out)

	body, err := p.Stream(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	defer body.Close()
	_, err = io.ReadAll(body)
	assert.Error(t, err, "a broken upstream fails the framed body too")
}

type fakeProvider struct {
	body string
	err  error
	req  Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Stream(_ context.Context, r Request) (io.ReadCloser, error) {
	f.req = r
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestRephraseEmitsFragments(t *testing.T) {
	fp := &fakeProvider{body: "0:\"1. Hello\"\n3:\"partial failure\"\n0:\"\\n2. Hi\"\nd:{}\n"}
	svc := NewService(fp, "English", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var out []string
	err := svc.Rephrase(context.Background(), "  hello  ", "Indonesian", func(s string) error {
		out = append(out, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1. Hello", "\n2. Hi"}, out)
	assert.Equal(t, BuildPrompt("hello", "Indonesian"), fp.req.Prompt)
	assert.Equal(t, SystemPrompt, fp.req.System)
}

func TestRephraseDefaultsLanguage(t *testing.T) {
	fp := &fakeProvider{}
	svc := NewService(fp, "Japanese", 0, nil)
	require.NoError(t, svc.Rephrase(context.Background(), "x", "", func(string) error { return nil }))
	assert.Contains(t, fp.req.Prompt, "translated into Japanese")
}

func TestRephraseErrors(t *testing.T) {
	noop := func(string) error { return nil }

	err := NewService(nil, "", 0, nil).Rephrase(context.Background(), "x", "", noop)
	assert.ErrorIs(t, err, ErrNoProvider)

	err = NewService(&fakeProvider{}, "", 0, nil).Rephrase(context.Background(), "   ", "", noop)
	assert.ErrorIs(t, err, ErrEmptyText)

	upstream := errors.New("connection refused")
	err = NewService(&fakeProvider{err: upstream}, "", 0, nil).Rephrase(context.Background(), "x", "", noop)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "rephrase via fake")

	stop := errors.New("client gone")
	fp := &fakeProvider{body: "0:\"a\"\n0:\"b\"\n"}
	err = NewService(fp, "", 0, nil).Rephrase(context.Background(), "x", "", func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestAvailable(t *testing.T) {
	assert.False(t, NewService(nil, "", 0, nil).Available())
	assert.True(t, NewService(&fakeProvider{}, "", 0, nil).Available())
}
