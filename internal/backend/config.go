package backend

import (
	"errors"
	"fmt"

	"spendsmart/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:           backendType,
		DataDirectory:  appConfig.DataDirectory,
		SQLiteDBPath:   appConfig.SQLiteDBPath,
		BoltDBPath:     appConfig.BoltDBPath,
		DatabaseURL:    appConfig.DatabaseURL,
		DynamoTable:    appConfig.DynamoTable,
		DynamoEndpoint: appConfig.DynamoEndpoint,
		AWSRegion:      appConfig.AWSRegion,
		AMQPURL:        appConfig.AMQPURL,
		AMQPExchange:   appConfig.AMQPExchange,
		AMQPQueue:      appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case BoltBackend:
		if c.BoltDBPath == "" {
			return errors.New("BoltDB path is required for bolt backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for postgres backend")
		}
	case DynamoBackend:
		if c.DynamoTable == "" {
			return errors.New("table name is required for dynamo backend")
		}
		if c.AWSRegion == "" {
			return errors.New("AWS region is required for dynamo backend")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, BoltBackend, PostgresBackend, DynamoBackend}
}
