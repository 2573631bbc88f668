package port

import "context"

type EventPublisher interface {
	// Publish writes value as a JSON event under key
	Publish(ctx context.Context, key string, value any) error
	Close() error
}
