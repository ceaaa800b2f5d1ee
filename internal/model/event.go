package model

// Event is the envelope for every WebSocket frame, inbound and outbound
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// SendMessageData is the inbound payload for the sendMessage event
type SendMessageData struct {
	SenderID   string  `json:"senderId"`
	ReceiverID string  `json:"receiverId"`
	Content    string  `json:"content"`
	ReplyTo    *string `json:"replyTo,omitempty"`
}

// TypingData is the inbound payload for the typing event
type TypingData struct {
	UserID    string `json:"userId"`
	ContactID string `json:"contactId"`
}

// BlockData is the inbound payload for blockUser / unblockUser
type BlockData struct {
	BlockerID string `json:"blockerId"`
	BlockedID string `json:"blockedId"`
}

// TypingEvent is relayed to the contact after the debounce window
type TypingEvent struct {
	UserID string `json:"userId"`
}

// BlockEvent confirms a block/unblock to the session that requested it
type BlockEvent struct {
	Status    string `json:"status"`
	BlockerID string `json:"blockerId"`
	BlockedID string `json:"blockedId"`
}
