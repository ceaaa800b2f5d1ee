package store

import (
	"context"
	"errors"

	"fuwamatch/internal/model"
)

// Block Registry のポリシーエラー
var (
	ErrAlreadyBlocked = errors.New("user is already blocked")
	ErrNoActiveBlock  = errors.New("no block found to unblock")
)

// MessageStore is the durable record of messages. Implementations must
// treat Insert as atomic: a message is either fully stored or the call
// fails.
type MessageStore interface {
	// Insert assigns the identifier and timestamps, then persists msg.
	Insert(ctx context.Context, msg *model.Message) error
	// FindByID returns nil (no error) when the id does not exist.
	FindByID(ctx context.Context, id string) (*model.Message, error)
	// FindByParticipants returns the full bidirectional conversation
	// between a and b, ascending by createdAt.
	FindByParticipants(ctx context.Context, a, b string) ([]model.Message, error)
	// MarkSeen flips isSeen on every unseen message from otherID to
	// readerID and returns the number affected. Idempotent.
	MarkSeen(ctx context.Context, readerID, otherID string) (int64, error)
	// DeleteCascade removes the direct replies of id, then id itself.
	// Returns false when the message did not exist.
	DeleteCascade(ctx context.Context, id string) (bool, error)
	// Edit replaces the content in place and refreshes updatedAt.
	// Returns nil (no error) when the id does not exist.
	Edit(ctx context.Context, id, newContent string) (*model.Message, error)
}

// BlockRegistry answers "is A blocked from messaging B" and owns the
// Block table.
type BlockRegistry interface {
	// IsBlocked is true iff receiverID has an active block against senderID.
	IsBlocked(ctx context.Context, senderID, receiverID string) (bool, error)
	// Block fails with ErrAlreadyBlocked on a duplicate ordered pair.
	Block(ctx context.Context, blockerID, blockedID string) error
	// Unblock fails with ErrNoActiveBlock when no block exists.
	Unblock(ctx context.Context, blockerID, blockedID string) error
}
