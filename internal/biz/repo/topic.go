package repo

import "context"

// TopicRepo stores the allowed topic per channel. At most one entry per
// channel; absence means "no filter", not "filter = none".
type TopicRepo interface {
	// Get returns the canonical allowed topic and whether one is set.
	Get(ctx context.Context, chatID string) (string, bool, error)

	// Set stores the canonical allowed topic for a channel.
	Set(ctx context.Context, chatID, topic string) error

	// Clear removes the channel's entry entirely.
	Clear(ctx context.Context, chatID string) error
}
