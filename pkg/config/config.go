// Package config loads lifedash.yaml and layers .env and environment
// overrides on top of it.
package config

import (
	"time"
)

// Config represents a lifedash.yaml configuration file.
type Config struct {
	Version        int           `yaml:"version"         json:"version"`
	DataDir        string        `yaml:"data_dir"        json:"data_dir"`
	Socket         string        `yaml:"socket"          json:"socket"`
	HealthInterval time.Duration `yaml:"health_interval" json:"health_interval"`
	Store          StoreConfig   `yaml:"store"           json:"store"`
	Log            LogConfig     `yaml:"log"             json:"log"`
	Assist         AssistConfig  `yaml:"assist"          json:"assist"`
	Events         EventsConfig  `yaml:"events"          json:"events"`
	GRPC           GRPCConfig    `yaml:"grpc"            json:"grpc"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"        json:"driver"` // memory|sqlite|postgres
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"  json:"level"`  // debug|info|warn|error
	Format string `yaml:"format" json:"format"` // text|json|journald
}

// AssistConfig configures the rephrasing upstream.
type AssistConfig struct {
	Provider string        `yaml:"provider"           json:"provider"`           // http|openai|none
	Endpoint string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // http: data-stream URL; openai: base URL override
	Model    string        `yaml:"model,omitempty"    json:"model,omitempty"`    // openai
	APIKey   string        `yaml:"api_key,omitempty"  json:"-"`
	Language string        `yaml:"language,omitempty" json:"language,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"  json:"timeout,omitempty"`
}

// EventsConfig enables change publishing to Kafka when brokers are set.
type EventsConfig struct {
	Brokers []string `yaml:"brokers,omitempty" json:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"   json:"topic,omitempty"`
}

// GRPCConfig enables the gRPC health endpoint when Addr is set.
type GRPCConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderNone   = "none"
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)
