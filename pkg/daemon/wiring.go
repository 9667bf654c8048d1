package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modoterra/lifedash/pkg/assist"
	"github.com/modoterra/lifedash/pkg/config"
	"github.com/modoterra/lifedash/pkg/events"
	"github.com/modoterra/lifedash/pkg/events/kafka"
	"github.com/modoterra/lifedash/pkg/store"
	"github.com/modoterra/lifedash/pkg/store/memory"
	"github.com/modoterra/lifedash/pkg/store/sqlstore"
)

// OpenStore opens the configured document store.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.New(), nil
	case config.DriverSQLite, config.DriverPostgres:
		st, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// OpenPublisher returns the Kafka publisher when brokers are configured.
func OpenPublisher(cfg config.EventsConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return events.Nop{}
	}
	return kafka.NewPublisher(cfg.Brokers, cfg.Topic)
}

// NewProvider builds the assist upstream. It returns nil for provider none.
func NewProvider(cfg config.AssistConfig) (assist.Provider, error) {
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderHTTP:
		var opts []assist.HTTPOption
		if cfg.APIKey != "" {
			opts = append(opts, assist.WithToken(cfg.APIKey))
		}
		return assist.NewHTTPProvider(cfg.Endpoint, opts...), nil
	case config.ProviderOpenAI:
		return assist.NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.Endpoint), nil
	}
	return nil, fmt.Errorf("unknown assist provider %q", cfg.Provider)
}

// NewAssist builds the rephrase service for cfg.
func NewAssist(cfg config.AssistConfig, logger *slog.Logger) (*assist.Service, error) {
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return assist.NewService(p, cfg.Language, cfg.Timeout, logger), nil
}
