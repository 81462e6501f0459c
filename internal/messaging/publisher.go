// Package messaging defines the outbound event surface. State-changing
// arena operations publish a message after their transaction commits;
// delivery is best effort and never blocks or reverses the commit.
package messaging

import (
	"context"

	"github.com/maincard-gg/card-arena/internal/domain"
)

//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher

// Publisher delivers arena events to downstream consumers
type Publisher interface {
	// PublishArenaEvent sends one event. Implementations retry internally;
	// a returned error means delivery was abandoned.
	PublishArenaEvent(ctx context.Context, event domain.ArenaEvent) error
	// Close flushes and releases the underlying connection
	Close() error
}

// NopPublisher discards every event. Used in tests and when messaging is
// not configured.
type NopPublisher struct{}

func (NopPublisher) PublishArenaEvent(_ context.Context, _ domain.ArenaEvent) error { return nil }
func (NopPublisher) Close() error                                                   { return nil }
