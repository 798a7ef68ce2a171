package kotae

// Public types for embedding consumers. Standalone structs with no internal
// imports; conversion to internal types happens in kotae.go, the only file
// that sees both sides of the boundary.

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message sent to a Completer.
type Message struct {
	Role    Role
	Content string
}

// Document is a titled text document for seeding the knowledge base.
type Document struct {
	Title   string
	Content string
}

// Tool is a named capability the ReAct agent can invoke. Execute receives the
// argument string the model produced and returns the observation text.
type Tool struct {
	Name        string
	Description string
	Execute     func(args string) string
}
