package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/fincore/gateway/pkg/logger"
)

// Settings holds process-level gateway configuration
type Settings struct {
	Log      logger.Config
	Store    StoreSettings
	LogStore LogStoreSettings
	Tracing  TracingSettings
}

// StoreSettings selects the SQL database holding connector configs, jobs and logs
type StoreSettings struct {
	Driver string `validate:"required,oneof=sqlite postgres"`
	DSN    string `validate:"required"`
}

// LogStoreSettings selects where operation log entries are written
type LogStoreSettings struct {
	Kind            string `validate:"required,oneof=sql mongo memory"`
	MongoURI        string `validate:"required_if=Kind mongo"`
	MongoDatabase   string
	MongoCollection string
}

// TracingSettings controls the otel tracer provider
type TracingSettings struct {
	Enabled     bool
	Exporter    string `validate:"oneof=stdout none"`
	ServiceName string
}

// LoadSettings loads gateway settings.
// Priority (highest to lowest):
// 1. Environment variables with GATEWAY_ prefix (e.g., GATEWAY_STORE_DSN)
// 2. the YAML file at path, when path is not empty
// 3. Built-in defaults
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading settings file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Settings{
		Log: logger.Config{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			Encoding:    v.GetString("log.encoding"),
			OutputPaths: v.GetStringSlice("log.output_paths"),
		},
		Store: StoreSettings{
			Driver: v.GetString("store.driver"),
			DSN:    v.GetString("store.dsn"),
		},
		LogStore: LogStoreSettings{
			Kind:            v.GetString("log_store.kind"),
			MongoURI:        v.GetString("log_store.mongo_uri"),
			MongoDatabase:   v.GetString("log_store.mongo_database"),
			MongoCollection: v.GetString("log_store.mongo_collection"),
		},
		Tracing: TracingSettings{
			Enabled:     v.GetBool("tracing.enabled"),
			Exporter:    v.GetString("tracing.exporter"),
			ServiceName: v.GetString("tracing.service_name"),
		},
	}

	if err := validateStruct(s); err != nil {
		return nil, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stderr"})

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "gateway.db")

	v.SetDefault("log_store.kind", "sql")
	v.SetDefault("log_store.mongo_uri", "")
	v.SetDefault("log_store.mongo_database", "gateway")
	v.SetDefault("log_store.mongo_collection", "integration_logs")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.service_name", "fincore-gateway")
}
