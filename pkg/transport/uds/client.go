package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned for requests on a closed or broken connection.
var ErrClosed = errors.New("connection closed")

// RemoteError is an error reported by the daemon in a response envelope.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}

// EventHandler is called when the server pushes an event.
type EventHandler func(msg Message)

type call struct {
	ch     chan Message
	stream EventHandler
}

// Client connects to a lifedashd server over a Unix domain socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string]*call
	events  EventHandler
	done    chan struct{}
	once    sync.Once
}

// Dial connects to the daemon socket.
func Dial(socketPath string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return DialContext(ctx, socketPath)
}

// DialContext connects to the daemon socket, giving up when ctx is done.
func DialContext(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	c := &Client{
		conn:    conn,
		scanner: bufio.NewScanner(conn),
		pending: make(map[string]*call),
		done:    make(chan struct{}),
	}
	c.scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	go c.readLoop()
	return c, nil
}

// OnEvent registers a handler for server-pushed broadcast events. The
// handler runs on the read goroutine and must not block.
func (c *Client) OnEvent(h EventHandler) {
	c.mu.Lock()
	c.events = h
	c.mu.Unlock()
}

// Done is closed once the connection is closed or broken.
func (c *Client) Done() <-chan struct{} { return c.done }

// Request sends a request and waits for the correlated response.
func (c *Client) Request(ctx context.Context, method string, data any) (Message, error) {
	return c.RequestStream(ctx, method, data, nil)
}

// RequestStream sends a request and calls onEvent for every event the
// server sends for it before the final response. If ctx is done first the
// server is asked to cancel the request.
func (c *Client) RequestStream(ctx context.Context, method string, data any, onEvent EventHandler) (Message, error) {
	msg, err := NewRequest(method, data)
	if err != nil {
		return Message{}, err
	}

	cl := &call{ch: make(chan Message, 1), stream: onEvent}
	c.mu.Lock()
	c.pending[msg.ID] = cl
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return Message{}, err
	}

	select {
	case resp := <-cl.ch:
		if resp.Error != "" {
			return resp, &RemoteError{Method: method, Message: resp.Error}
		}
		return resp, nil
	case <-ctx.Done():
		if cancel, err := NewRequest(MethodCancel, CancelRequest{ID: msg.ID}); err == nil {
			_ = c.send(cancel)
		}
		return Message{}, ctx.Err()
	case <-c.done:
		return Message{}, ErrClosed
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) send(msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(raw); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.Close()
	for c.scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(c.scanner.Bytes(), &msg); err != nil {
			continue
		}

		c.mu.Lock()
		cl, pending := c.pending[msg.ID]
		events := c.events
		c.mu.Unlock()

		switch msg.Type {
		case MsgTypeRes:
			if pending {
				cl.ch <- msg
			}
		case MsgTypeEvt:
			switch {
			case pending && cl.stream != nil:
				cl.stream(msg)
			case !pending && events != nil:
				events(msg)
			}
		}
	}
}

// Call sends a request and decodes the response payload into T.
func Call[T any](ctx context.Context, c *Client, method string, data any) (T, error) {
	var out T
	resp, err := c.Request(ctx, method, data)
	if err != nil {
		return out, err
	}
	err = resp.Decode(&out)
	return out, err
}
