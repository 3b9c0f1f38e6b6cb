// Package backend opens the storage, messaging and cache pieces selected by
// the configuration and assembles them into a ledger service.
package backend

import (
	"context"

	"spendsmart/internal/amqp"
	"spendsmart/internal/ports"
)

// CleanupFunc releases resources opened by the factory.
type CleanupFunc func() error

// Result holds the opened store and, when AMQP is configured, the event
// client.
type Result struct {
	Store     ports.Store
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory
	DataDirectory string

	// SQLite and BoltDB
	SQLiteDBPath string
	BoltDBPath   string

	// PostgreSQL
	DatabaseURL string

	// DynamoDB
	DynamoTable    string
	DynamoEndpoint string
	AWSRegion      string

	// AMQP is optional for every backend.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	BoltBackend     BackendType = "bolt"
	PostgresBackend BackendType = "postgres"
	DynamoBackend   BackendType = "dynamo"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, BoltBackend, PostgresBackend, DynamoBackend:
		return true
	default:
		return false
	}
}
