package connection

import (
	"context"
	"fmt"
	"sync"

	"tradeledger/internal/ports"
)

// Holder owns the process-wide store client. The client is dialled on first
// use and re-dialled when a ping on acquisition fails. Callers serialize only
// while acquiring; the returned handle is safe for concurrent use.
type Holder struct {
	connector ports.Connector
	logger    ports.Logger

	mu     sync.Mutex
	client ports.Client
}

// NewHolder returns a holder that dials through connector.
func NewHolder(connector ports.Connector, logger ports.Logger) (*Holder, error) {
	if connector == nil {
		return nil, fmt.Errorf("connector is required: %w", ports.ErrConfiguration)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required: %w", ports.ErrConfiguration)
	}
	return &Holder{connector: connector, logger: logger}, nil
}

// Client returns a live client, connecting or reconnecting as needed.
func (h *Holder) Client(ctx context.Context) (ports.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		err := h.client.Ping(ctx)
		if err == nil {
			return h.client, nil
		}
		h.logger.Warn(ctx, "Store ping failed, reconnecting", map[string]interface{}{"error": err.Error()})
		_ = h.client.Close(ctx)
		h.client = nil
	}

	client, err := h.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	h.client = client
	return client, nil
}

// Get returns a handle on the named logical database.
func (h *Holder) Get(ctx context.Context, dbName string) (ports.Database, error) {
	client, err := h.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(dbName), nil
}

// With runs fn against the named database.
func (h *Holder) With(ctx context.Context, dbName string, fn func(ports.Database) error) error {
	db, err := h.Get(ctx, dbName)
	if err != nil {
		return err
	}
	return fn(db)
}

// Close releases the client, if one was opened.
func (h *Holder) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close(ctx)
	h.client = nil
	return err
}
