package llm

import "context"

// StaticCompleter returns a fixed reply for every conversation. Used when no
// provider is configured so the system stays operational end to end, and in
// tests that need a deterministic model.
type StaticCompleter struct {
	reply string
	err   error
}

// NewStaticCompleter creates a completer that always returns reply.
func NewStaticCompleter(reply string) *StaticCompleter {
	return &StaticCompleter{reply: reply}
}

// NewFailingCompleter creates a completer whose every call fails with err.
func NewFailingCompleter(err error) *StaticCompleter {
	return &StaticCompleter{err: err}
}

// Name implements Completer.
func (c *StaticCompleter) Name() string { return "static" }

// Complete returns the fixed reply regardless of input.
func (c *StaticCompleter) Complete(_ context.Context, _ []Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

// Func adapts an ordinary function to the Completer interface. Test helper.
type Func func(ctx context.Context, messages []Message) (string, error)

// Name implements Completer.
func (Func) Name() string { return "func" }

// Complete implements Completer.
func (f Func) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
