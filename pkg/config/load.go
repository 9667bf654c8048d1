package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the config directory.
const FileName = "lifedash.yaml"

// Default returns a runnable configuration: SQLite under the user data
// directory, socket in the runtime directory, no AI upstream.
func Default() *Config {
	return &Config{
		Version:        1,
		DataDir:        defaultDataDir(),
		Socket:         "${runtime_dir}/lifedash.sock",
		HealthInterval: time.Second,
		Store:          StoreConfig{Driver: DriverSQLite, DSN: "${data_dir}/lifedash.db"},
		Log:            LogConfig{Level: "info", Format: "text"},
		Assist: AssistConfig{
			Provider: ProviderNone,
			Model:    "gpt-4o-mini",
			Language: "English",
			Timeout:  60 * time.Second,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/lifedash/lifedash.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), "lifedash")
		return filepath.Join(dir, FileName)
	}
	return filepath.Join(dir, "lifedash", FileName)
}

// Parse decodes YAML on top of the defaults and expands ${...} references.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.interpolate()
	return c, nil
}

// Load reads the config file at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		c := Default()
		c.interpolate()
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Save writes c to path, creating the directory.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Resolve loads path, then .env from the working directory (when present),
// then applies LIFEDASH_* environment overrides.
func Resolve(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.ApplyEnv(os.Getenv)
	return c, nil
}

// ApplyEnv overrides fields from the environment. Empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Socket, "LIFEDASH_SOCKET")
	set(&c.Store.Driver, "LIFEDASH_STORE_DRIVER")
	set(&c.Store.DSN, "LIFEDASH_STORE_DSN")
	set(&c.Log.Level, "LIFEDASH_LOG_LEVEL")
	set(&c.Log.Format, "LIFEDASH_LOG_FORMAT")
	set(&c.Assist.Provider, "LIFEDASH_ASSIST_PROVIDER")
	set(&c.Assist.Endpoint, "LIFEDASH_ASSIST_ENDPOINT")
	set(&c.Assist.APIKey, "OPENAI_API_KEY")
	set(&c.GRPC.Addr, "LIFEDASH_GRPC_ADDR")
	if v := strings.TrimSpace(getenv("LIFEDASH_KAFKA_BROKERS")); v != "" {
		c.Events.Brokers = splitList(v)
	}
	c.interpolate()
}

// interpolate expands ${data_dir} and ${runtime_dir} in path-like fields.
// data_dir itself is not expanded.
func (c *Config) interpolate() {
	r := strings.NewReplacer("${data_dir}", c.DataDir, "${runtime_dir}", runtimeDir())
	c.Socket = r.Replace(c.Socket)
	c.Store.DSN = r.Replace(c.Store.DSN)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "lifedash")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "lifedash")
	}
	return filepath.Join(os.TempDir(), "lifedash")
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
