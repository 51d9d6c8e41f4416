package repo

import "context"

// ClassifierRepo is the classification oracle interface. Implementations
// must not mutate the input text. Two instances are injected: one for
// sentiment, one for topics.
type ClassifierRepo interface {
	// Classify returns the predicted label and a confidence in [0,1].
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}
