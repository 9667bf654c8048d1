package uds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T, register func(*Server)) (*Server, string) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "test.sock")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv := NewServer(sock, logger)
	srv.Handle(MethodPing, func(_ context.Context, _ Message) (any, error) {
		return PingResponse{Pong: true, TSUnixMS: 42}, nil
	})
	if register != nil {
		register(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
		if err := <-errCh; err != nil {
			t.Errorf("server start: %v", err)
		}
	})

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening")
	}
	return srv, sock
}

func dial(t *testing.T, sock string) *Client {
	t.Helper()
	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func reqContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPingRoundTrip(t *testing.T) {
	_, sock := startServer(t, nil)
	client := dial(t, sock)

	pong, err := Call[PingResponse](reqContext(t), client, MethodPing, nil)
	if err != nil {
		t.Fatalf("ping request: %v", err)
	}
	if !pong.Pong || pong.TSUnixMS != 42 {
		t.Errorf("unexpected pong: %+v", pong)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, sock := startServer(t, nil)
	client := dial(t, sock)

	_, err := client.Request(reqContext(t), "NoSuchMethod", nil)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Message != "unknown method: NoSuchMethod" {
		t.Errorf("unexpected message %q", remote.Message)
	}
}

func TestHandlerErrorAndPayload(t *testing.T) {
	_, sock := startServer(t, func(s *Server) {
		s.Handle(MethodAddNote, func(_ context.Context, req Message) (any, error) {
			var in AddNoteRequest
			if err := req.Decode(&in); err != nil {
				return nil, err
			}
			if in.Content == "" {
				return nil, errors.New("note content must not be empty")
			}
			return map[string]string{"echo": in.Content}, nil
		})
	})
	client := dial(t, sock)

	out, err := Call[map[string]string](reqContext(t), client, MethodAddNote, AddNoteRequest{Content: "milk"})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if out["echo"] != "milk" {
		t.Errorf("echo = %q", out["echo"])
	}

	_, err = client.Request(reqContext(t), MethodAddNote, AddNoteRequest{})
	if err == nil || err.Error() != "server error: note content must not be empty" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBroadcastEvent(t *testing.T) {
	srv, sock := startServer(t, nil)
	client := dial(t, sock)

	evtCh := make(chan Message, 1)
	client.OnEvent(func(msg Message) {
		evtCh <- msg
	})

	// Ensure connection is established by doing a ping first
	if _, err := client.Request(reqContext(t), MethodPing, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if n := srv.Clients(); n != 1 {
		t.Errorf("clients = %d", n)
	}

	evt, _ := NewEvent(EventRecordsChanged, map[string]string{"kind": "note"})
	srv.Broadcast(evt)

	select {
	case msg := <-evtCh:
		if msg.Method != EventRecordsChanged {
			t.Errorf("expected method %s, got %s", EventRecordsChanged, msg.Method)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for broadcast event")
	}
}

func TestStreamEventsPrecedeResponse(t *testing.T) {
	_, sock := startServer(t, func(s *Server) {
		s.HandleStream(MethodRephrase, func(_ context.Context, req Message, send func(string, any) error) (any, error) {
			for i := 1; i <= 3; i++ {
				if err := send(EventAssistChunk, AssistChunk{Text: fmt.Sprintf("%d.", i)}); err != nil {
					return nil, err
				}
			}
			return RephraseResponse{OK: true}, nil
		})
	})
	client := dial(t, sock)

	var broadcasts atomic.Int32
	client.OnEvent(func(Message) { broadcasts.Add(1) })

	var chunks []string
	resp, err := client.RequestStream(reqContext(t), MethodRephrase, RephraseRequest{Text: "hi"}, func(msg Message) {
		var c AssistChunk
		if err := msg.Decode(&c); err != nil {
			t.Errorf("decode chunk: %v", err)
		}
		chunks = append(chunks, c.Text)
	})
	if err != nil {
		t.Fatalf("rephrase: %v", err)
	}
	var out RephraseResponse
	if err := resp.Decode(&out); err != nil || !out.OK {
		t.Errorf("response = %+v, %v", out, err)
	}
	if fmt.Sprint(chunks) != "[1. 2. 3.]" {
		t.Errorf("chunks = %v", chunks)
	}
	if n := broadcasts.Load(); n != 0 {
		t.Errorf("stream events leaked to broadcast handler: %d", n)
	}
}

func TestCancelStopsHandler(t *testing.T) {
	stopped := make(chan error, 1)
	started := make(chan struct{})
	_, sock := startServer(t, func(s *Server) {
		s.HandleStream(MethodRephrase, func(ctx context.Context, _ Message, _ func(string, any) error) (any, error) {
			close(started)
			<-ctx.Done()
			stopped <- ctx.Err()
			return nil, ctx.Err()
		})
	})
	client := dial(t, sock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	if _, err := client.RequestStream(ctx, MethodRephrase, RephraseRequest{Text: "hi"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	select {
	case err := <-stopped:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("handler ctx err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not cancelled")
	}

	// The connection stays usable.
	if _, err := client.Request(reqContext(t), MethodPing, nil); err != nil {
		t.Errorf("ping after cancel: %v", err)
	}
}

func TestSlowRequestDoesNotBlockPing(t *testing.T) {
	release := make(chan struct{})
	_, sock := startServer(t, func(s *Server) {
		s.Handle(MethodListNotes, func(ctx context.Context, _ Message) (any, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return []string{}, nil
		})
	})
	client := dial(t, sock)
	defer close(release)

	go client.Request(context.Background(), MethodListNotes, nil)
	if _, err := client.Request(reqContext(t), MethodPing, nil); err != nil {
		t.Fatalf("ping while another request is in flight: %v", err)
	}
}

func TestRequestAfterServerShutdown(t *testing.T) {
	srv, sock := startServer(t, nil)
	client := dial(t, sock)
	if _, err := client.Request(reqContext(t), MethodPing, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}

	srv.Shutdown()
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the closed connection")
	}
	if _, err := client.Request(reqContext(t), MethodPing, nil); err == nil {
		t.Error("expected error on closed connection")
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	var out PingResponse
	if err := (Message{}).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := (Message{Method: "X", Data: []byte("{")}).Decode(&out); err == nil {
		t.Error("expected decode error")
	}
}
