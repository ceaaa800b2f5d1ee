package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"fuwamatch/internal/model"
)

// MySQLMessageStore persists messages in the messages table
type MySQLMessageStore struct {
	DB *sql.DB
}

// MySQLBlockRegistry persists blocks in the user_blocks table
type MySQLBlockRegistry struct {
	DB *sql.DB
}

// Insert assigns id and timestamps, then writes the row
func (s *MySQLMessageStore) Insert(ctx context.Context, msg *model.Message) error {
	now := time.Now().UTC()
	msg.ID = uuid.NewString()
	msg.IsSeen = false
	msg.CreatedAt = now
	msg.UpdatedAt = now

	var replyTo sql.NullString
	if msg.ReplyTo != nil {
		replyTo = sql.NullString{String: *msg.ReplyTo, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO messages (id, sender_id, receiver_id, content, reply_to, is_seen, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, replyTo, msg.IsSeen, msg.CreatedAt, msg.UpdatedAt)
	return err
}

const messageColumns = "id, sender_id, receiver_id, content, reply_to, is_seen, created_at, updated_at"

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	var msg model.Message
	var replyTo sql.NullString
	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &replyTo, &msg.IsSeen, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return nil, err
	}
	if replyTo.Valid {
		msg.ReplyTo = &replyTo.String
	}
	return &msg, nil
}

// FindByID returns the message or nil when absent
func (s *MySQLMessageStore) FindByID(ctx context.Context, id string) (*model.Message, error) {
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// FindByParticipants returns both directions of the conversation,
// createdAt ascending. 同時刻は id で順序を安定させる
func (s *MySQLMessageStore) FindByParticipants(ctx context.Context, a, b string) ([]model.Message, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+messageColumns+` FROM messages
		 WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		 ORDER BY created_at ASC, id ASC`,
		a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgList []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgList = append(msgList, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return msgList, nil
}

// MarkSeen marks all unseen messages from otherID to readerID as seen
func (s *MySQLMessageStore) MarkSeen(ctx context.Context, readerID, otherID string) (int64, error) {
	result, err := s.DB.ExecContext(ctx,
		"UPDATE messages SET is_seen = 1, updated_at = ? WHERE sender_id = ? AND receiver_id = ? AND is_seen = 0",
		time.Now().UTC(), otherID, readerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteCascade removes the direct replies of id, then id itself.
// 単階層カスケード: 孫リプライは孤児としてスレッド再構築時にルート昇格する
func (s *MySQLMessageStore) DeleteCascade(ctx context.Context, id string) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM messages WHERE id = ?)", id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE reply_to = ?", id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// Edit replaces the content and refreshes updatedAt
func (s *MySQLMessageStore) Edit(ctx context.Context, id, newContent string) (*model.Message, error) {
	result, err := s.DB.ExecContext(ctx,
		"UPDATE messages SET content = ?, updated_at = ? WHERE id = ?",
		newContent, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	return s.FindByID(ctx, id)
}

// IsBlocked is true iff receiverID has blocked senderID
func (r *MySQLBlockRegistry) IsBlocked(ctx context.Context, senderID, receiverID string) (bool, error) {
	var blocked bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM user_blocks WHERE blocker_id = ? AND blocked_id = ?)",
		receiverID, senderID).Scan(&blocked)
	return blocked, err
}

// Block creates a block for the ordered pair
func (r *MySQLBlockRegistry) Block(ctx context.Context, blockerID, blockedID string) error {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM user_blocks WHERE blocker_id = ? AND blocked_id = ?)",
		blockerID, blockedID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyBlocked
	}

	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO user_blocks (blocker_id, blocked_id, created_at) VALUES (?, ?, ?)",
		blockerID, blockedID, time.Now().UTC())
	return err
}

// Unblock deletes the block for the ordered pair
func (r *MySQLBlockRegistry) Unblock(ctx context.Context, blockerID, blockedID string) error {
	result, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_blocks WHERE blocker_id = ? AND blocked_id = ?",
		blockerID, blockedID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoActiveBlock
	}
	return nil
}
