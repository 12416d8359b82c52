package chat

// Inbound event names consumed from the transport layer.
const (
	EventJoinChat    = "join_chat"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
)

// Outbound event names produced for the transport layer.
const (
	EventChatHistory       = "chat_history"
	EventMessage           = "message"
	EventOnlineUsers       = "online_users_update"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
)

// OnlineUsersPayload is the presence snapshot broadcast after every
// session change. Count always equals len(Users).
type OnlineUsersPayload struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// TypingNotification names the user whose typing state changed.
type TypingNotification struct {
	Username string `json:"username"`
}
