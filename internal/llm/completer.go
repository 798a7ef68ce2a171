package llm

import "context"

// Completer produces a model completion for a chat conversation.
type Completer interface {
	// Complete returns the model's reply to the given messages.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Name identifies the provider for logging and health reporting.
	Name() string
}
