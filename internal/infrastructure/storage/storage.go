// Package storage holds the topic history backends.
package storage

import (
	"context"

	"ProSocialFlow/internal/ports"
)

// Collection is the document collection holding one record per category.
const Collection = "topic_history"

// Backend is a history store with a connection lifecycle.
type Backend interface {
	ports.HistoryStore
	Ping(ctx context.Context) error
	Close() error
}
