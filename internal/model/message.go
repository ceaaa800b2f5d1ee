package model

import "time"

// Message represents a persisted direct message between two users
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	ReplyTo    *string   `json:"replyTo"`
	IsSeen     bool      `json:"isSeen"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ThreadMessage is the derived presentation shape: a Message plus its
// direct replies. Replies はスレッド再構築時にのみ埋められ、永続化されない
type ThreadMessage struct {
	Message
	Replies []*ThreadMessage `json:"replies"`
}

// Block represents an active block by BlockerID against BlockedID.
// 方向性あり: A→B のブロックは B→A 宛の送信だけを止める
type Block struct {
	BlockerID string    `json:"blockerId"`
	BlockedID string    `json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}
