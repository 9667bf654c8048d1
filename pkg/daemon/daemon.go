package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/modoterra/lifedash/pkg/assist"
	"github.com/modoterra/lifedash/pkg/dashboard"
	"github.com/modoterra/lifedash/pkg/events"
	"github.com/modoterra/lifedash/pkg/store"
	"github.com/modoterra/lifedash/pkg/transport/uds"
)

// Options wires a daemon together. Store is required; everything else has a
// usable default.
type Options struct {
	Socket    string
	Store     store.Store
	Publisher events.Publisher // extra change sink next to the socket broadcast
	Assist    *assist.Service
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Daemon is the lifedashd process: it owns the store and the AI upstream and
// serves both over the socket.
type Daemon struct {
	server *uds.Server
	dash   *dashboard.Service
	assist *assist.Service
	health uds.HealthEvent
	mu     sync.RWMutex
	logger *slog.Logger
}

// New creates a new daemon instance.
func New(opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	as := opts.Assist
	if as == nil {
		as = assist.NewService(nil, "", 0, logger)
	}

	d := &Daemon{
		server: uds.NewServer(opts.Socket, logger),
		assist: as,
		logger: logger,
	}

	pubs := events.Fanout{events.Func(d.broadcastChange)}
	if opts.Publisher != nil {
		pubs = append(pubs, opts.Publisher)
	}
	dashOpts := []dashboard.Option{dashboard.WithPublisher(pubs), dashboard.WithLogger(logger)}
	if opts.Clock != nil {
		dashOpts = append(dashOpts, dashboard.WithClock(opts.Clock))
	}
	d.dash = dashboard.New(opts.Store, dashOpts...)
	d.health = uds.HealthEvent{Store: opts.Store.Name(), OK: true}

	d.registerHandlers()
	return d
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	return d.server.Start(ctx)
}

// Shutdown cleans up resources.
func (d *Daemon) Shutdown() {
	d.server.Shutdown()
}

// Server returns the underlying UDS server (for broadcasting events).
func (d *Daemon) Server() *uds.Server {
	return d.server
}

// Dashboard returns the widget service the handlers run against.
func (d *Daemon) Dashboard() *dashboard.Service {
	return d.dash
}

// Health returns the last recorded store health.
func (d *Daemon) Health() uds.HealthEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.health
}

// setHealth records h and reports whether it differs from the previous state.
func (d *Daemon) setHealth(h uds.HealthEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := d.health.OK != h.OK || d.health.Error != h.Error
	d.health = h
	return changed
}

func (d *Daemon) broadcastChange(_ context.Context, c events.Change) error {
	evt, err := uds.NewEvent(uds.EventRecordsChanged, c)
	if err != nil {
		return err
	}
	d.server.Broadcast(evt)
	return nil
}
