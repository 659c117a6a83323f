package domain

// Turn roles as stored in the conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation exchange entry. Turns are immutable once
// appended; ordering is insertion order.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
