package graphdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string `koanf:"uri"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// Tx runs cypher inside a write transaction.
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// Writer executes units of work in write transactions.
type Writer interface {
	Write(ctx context.Context, work func(Tx) error) error
	Close(ctx context.Context) error
}

// Neo4jWriter is a Writer backed by the Neo4j driver.
type Neo4jWriter struct {
	driver   neo4j.DriverWithContext
	database string
}

// Connect opens a driver and verifies connectivity, retrying with
// exponential backoff up to three times.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Neo4jWriter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Warn("neo4j not reachable", slog.String("uri", cfg.URI), slog.Int("attempt", attempt), slog.String("error", err.Error()))
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx))
	if err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.URI, err)
	}

	logger.Debug("connected to neo4j", slog.String("uri", cfg.URI))
	return &Neo4jWriter{driver: driver, database: cfg.Database}, nil
}

// Write runs work in a managed write transaction.
func (w *Neo4jWriter) Write(ctx context.Context, work func(Tx) error) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: w.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, work(managedTx{tx})
	})
	return err
}

// Close closes the driver.
func (w *Neo4jWriter) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}

type managedTx struct {
	tx neo4j.ManagedTransaction
}

func (m managedTx) Run(ctx context.Context, cypher string, params map[string]any) error {
	result, err := m.tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}
