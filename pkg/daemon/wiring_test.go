package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/lifedash/pkg/assist"
	"github.com/modoterra/lifedash/pkg/config"
	"github.com/modoterra/lifedash/pkg/events"
	"github.com/modoterra/lifedash/pkg/events/kafka"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Name())
	require.NoError(t, st.Close())

	st, err = OpenStore(ctx, config.StoreConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "nested", "lifedash.db"),
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Name())
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Driver: "mongo"})
	assert.ErrorContains(t, err, `unknown store driver "mongo"`)
}

func TestOpenPublisher(t *testing.T) {
	assert.IsType(t, events.Nop{}, OpenPublisher(config.EventsConfig{}))

	pub := OpenPublisher(config.EventsConfig{Brokers: []string{"localhost:9092"}})
	assert.IsType(t, &kafka.Publisher{}, pub)
	require.NoError(t, pub.Close())
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.AssistConfig{Provider: config.ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(config.AssistConfig{Provider: config.ProviderHTTP, Endpoint: "http://localhost:3000/api/openai"})
	require.NoError(t, err)
	assert.Equal(t, "http", p.Name())

	p, err = NewProvider(config.AssistConfig{Provider: config.ProviderOpenAI, APIKey: "sk", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(config.AssistConfig{Provider: "llama"})
	assert.Error(t, err)

	svc, err := NewAssist(config.AssistConfig{Provider: config.ProviderNone}, testLogger())
	require.NoError(t, err)
	assert.False(t, svc.Available())
	assert.ErrorIs(t, svc.Rephrase(context.Background(), "x", "", func(string) error { return nil }), assist.ErrNoProvider)
}
