package storage

import (
	"context"

	"clicktracker/internal/domain"
)

// Repository defines the durable side of the link registry.
// The registry keeps everything in memory and hands the repository a full
// snapshot after each mutation, so implementations only need to store and
// return one ordered list.
type Repository interface {
	// LoadLinks returns the last saved snapshot, or an empty slice if nothing
	// has been saved yet.
	LoadLinks(ctx context.Context) ([]domain.Link, error)

	// SaveLinks replaces the stored snapshot with links, preserving order.
	SaveLinks(ctx context.Context, links []domain.Link) error

	// Close gracefully shuts down the repository connection.
	Close() error
}
