// Package presets generates starter configurations for `lifedash config init`.
package presets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modoterra/lifedash/pkg/config"
)

var generators = map[string]func(dataDir string) *config.Config{
	"local": func(dataDir string) *config.Config {
		c := base(dataDir)
		c.Store = config.StoreConfig{Driver: config.DriverSQLite, DSN: "${data_dir}/lifedash.db"}
		return c
	},
	"ephemeral": func(dataDir string) *config.Config {
		c := base(dataDir)
		c.Store = config.StoreConfig{Driver: config.DriverMemory}
		c.Log.Level = "debug"
		return c
	},
	"postgres": func(dataDir string) *config.Config {
		c := base(dataDir)
		c.Store = config.StoreConfig{
			Driver: config.DriverPostgres,
			DSN:    "postgres://lifedash@localhost:5432/lifedash?sslmode=disable",
		}
		return c
	},
}

// Names lists the available presets.
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate creates the named preset rooted at dataDir. An empty dataDir keeps
// the default data directory.
func Generate(name, dataDir string) (*config.Config, error) {
	gen, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		dataDir = abs
	}
	return gen(dataDir), nil
}

// Detect starts from the local preset and adjusts it to what the environment
// offers: a Postgres URL, an OpenAI key, Kafka brokers and the journal.
func Detect(dataDir string, getenv func(string) string) (*config.Config, error) {
	c, err := Generate("local", dataDir)
	if err != nil {
		return nil, err
	}

	if dsn := getenv("DATABASE_URL"); strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		c.Store = config.StoreConfig{Driver: config.DriverPostgres, DSN: dsn}
	}
	if getenv("OPENAI_API_KEY") != "" {
		// The key itself stays in the environment.
		c.Assist.Provider = config.ProviderOpenAI
	}
	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Events.Brokers = append(c.Events.Brokers, b)
			}
		}
	}
	if journalAvailable() {
		c.Log.Format = "journald"
	}
	return c, nil
}

func base(dataDir string) *config.Config {
	c := config.Default()
	if dataDir != "" {
		c.DataDir = dataDir
	}
	return c
}

// journalAvailable checks for the journald native socket.
func journalAvailable() bool {
	_, err := os.Stat("/run/systemd/journal/socket")
	return err == nil
}
