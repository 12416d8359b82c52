package chat

// Kind distinguishes user-authored messages from dispatcher-generated
// notices.
type Kind string

const (
	KindUser   Kind = "user"
	KindSystem Kind = "system"
)

// systemUsername is the author of join and leave notices.
const systemUsername = "System"

// timestampFormat is the wall-clock, second-precision format clients
// render directly.
const timestampFormat = "15:04:05"

// Message is a single chat history record. Records are immutable once
// appended; there is no ID, edit, or delete.
type Message struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Kind      Kind   `json:"type"`
}
