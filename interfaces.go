package kotae

import "context"

// Completer generates one chat completion. Implement this to plug a custom
// LLM backend into the agent instead of the built-in OpenAI/Ollama clients.
type Completer interface {
	// Complete returns the assistant reply for the given conversation.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Name identifies the backend in logs.
	Name() string
}
