// Package translate defines the translation provider boundary. The engine
// behind it is a collaborator; callers get a single fallible call with no
// retry.
package translate

import "context"

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Passthrough returns the input unchanged. It stands in when no external
// provider is configured so the reaction flow stays exercisable.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}
