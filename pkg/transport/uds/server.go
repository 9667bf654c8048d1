package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
)

// HandlerFunc processes a request and returns a response data payload or error.
type HandlerFunc func(ctx context.Context, req Message) (any, error)

// StreamFunc is a handler that may push events tied to its request through
// send before returning the final payload. ctx is cancelled when the client
// sends Cancel for the request or disconnects.
type StreamFunc func(ctx context.Context, req Message, send func(method string, data any) error) (any, error)

// Server listens on a Unix domain socket and dispatches NDJSON messages.
type Server struct {
	socketPath string
	listener   net.Listener
	handlers   map[string]StreamFunc
	clients    map[*peer]struct{}
	ready      chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// peer is one connected client. Writes are serialized because responses,
// stream events and broadcasts come from different goroutines.
type peer struct {
	conn    net.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func (p *peer) write(line []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write(line)
	return err
}

// NewServer creates a new UDS server.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]StreamFunc),
		clients:    make(map[*peer]struct{}),
		ready:      make(chan struct{}),
		logger:     logger,
	}
}

// Handle registers a handler for a method.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.HandleStream(method, func(ctx context.Context, req Message, _ func(string, any) error) (any, error) {
		return h(ctx, req)
	})
}

// HandleStream registers a streaming handler for a method.
func (s *Server) HandleStream(method string, h StreamFunc) {
	s.handlers[method] = h
}

// Start begins listening. It removes any stale socket file first and blocks
// until ctx is done or the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("server listening", "socket", s.socketPath)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "err", err)
			continue
		}
		p := &peer{conn: conn, inflight: make(map[string]context.CancelFunc)}
		s.mu.Lock()
		s.clients[p] = struct{}{}
		s.mu.Unlock()
		go s.handleConn(ctx, p)
	}
}

// Ready is closed once Start is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Broadcast sends an event to all connected clients.
func (s *Server) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("broadcast marshal error", "err", err)
		return
	}
	line := append(data, '\n')

	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.clients {
		if err := p.write(line); err != nil {
			s.logger.Debug("broadcast write error", "err", err)
		}
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown cleanly stops the server.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for p := range s.clients {
		p.conn.Close()
	}
	s.mu.Unlock()
	os.Remove(s.socketPath)
}

func (s *Server) handleConn(ctx context.Context, p *peer) {
	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		p.conn.Close()
		s.mu.Lock()
		delete(s.clients, p)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024) // 1MB max line

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			s.logger.Error("invalid message", "err", err)
			continue
		}
		if msg.Type != MsgTypeReq {
			continue
		}

		if msg.Method == MethodCancel {
			var req CancelRequest
			if err := msg.Decode(&req); err != nil {
				s.writeMessage(p, NewErrorResponse(msg.ID, msg.Method, err.Error()))
				continue
			}
			found := p.cancel(req.ID)
			resp, _ := NewResponse(msg.ID, msg.Method, map[string]bool{"cancelled": found})
			s.writeMessage(p, resp)
			continue
		}

		handler, ok := s.handlers[msg.Method]
		if !ok {
			s.writeMessage(p, NewErrorResponse(msg.ID, msg.Method, fmt.Sprintf("unknown method: %s", msg.Method)))
			continue
		}

		reqCtx, reqCancel := context.WithCancel(connCtx)
		p.track(msg.ID, reqCancel)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.untrack(msg.ID)
			s.serve(reqCtx, p, msg, handler)
		}()
	}
}

func (s *Server) serve(ctx context.Context, p *peer, msg Message, h StreamFunc) {
	send := func(method string, data any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		evt, err := NewStreamEvent(msg.ID, method, data)
		if err != nil {
			return err
		}
		return s.writeMessage(p, evt)
	}

	result, err := h(ctx, msg, send)
	var resp Message
	if err != nil {
		resp = NewErrorResponse(msg.ID, msg.Method, err.Error())
	} else if resp, err = NewResponse(msg.ID, msg.Method, result); err != nil {
		resp = NewErrorResponse(msg.ID, msg.Method, err.Error())
	}
	s.writeMessage(p, resp)
}

func (s *Server) writeMessage(p *peer, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal response error", "err", err)
		return err
	}
	if err := p.write(append(data, '\n')); err != nil {
		s.logger.Debug("write response error", "err", err)
		return err
	}
	return nil
}

func (p *peer) track(id string, cancel context.CancelFunc) {
	p.mu.Lock()
	p.inflight[id] = cancel
	p.mu.Unlock()
}

func (p *peer) untrack(id string) {
	p.mu.Lock()
	if cancel, ok := p.inflight[id]; ok {
		cancel()
		delete(p.inflight, id)
	}
	p.mu.Unlock()
}

func (p *peer) cancel(id string) bool {
	p.mu.Lock()
	cancel, ok := p.inflight[id]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
