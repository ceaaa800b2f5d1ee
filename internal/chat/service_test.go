package chat

import (
	"context"
	"errors"
	"testing"

	"fuwamatch/internal/store"
)

func newTestService() *Service {
	return New(store.NewMemoryMessageStore(), store.NewMemoryBlockRegistry())
}

// TestSendMessage_Success 送信成功時は未読の新規メッセージが返る
func TestSendMessage_Success(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	msg, err := s.SendMessage(ctx, "u1", "u2", "hello", nil)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if msg.ID == "" {
		t.Error("Expected assigned id, got empty string")
	}
	if msg.IsSeen {
		t.Error("New message should be unseen")
	}
	if msg.ReplyTo != nil {
		t.Error("Root message should have nil replyTo")
	}
	if msg.CreatedAt.IsZero() || msg.UpdatedAt.IsZero() {
		t.Error("Timestamps should be assigned on insert")
	}
}

// TestSendMessage_MissingFields 入力不備は書き込み前に弾かれる
func TestSendMessage_MissingFields(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	cases := []struct {
		sender, receiver, content string
	}{
		{"", "u2", "hi"},
		{"u1", "", "hi"},
		{"u1", "u2", ""},
	}

	for _, c := range cases {
		if _, err := s.SendMessage(ctx, c.sender, c.receiver, c.content, nil); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("Expected ErrInvalidMessage for %+v, got %v", c, err)
		}
	}
}

// TestSendMessage_ReplyTargetNotFound 存在しない返信先はErrReplyTargetNotFound、
// かつ部分書き込みなし
func TestSendMessage_ReplyTargetNotFound(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	missing := "missing-id"
	_, err := s.SendMessage(ctx, "u1", "u2", "hello", &missing)
	if !errors.Is(err, ErrReplyTargetNotFound) {
		t.Fatalf("Expected ErrReplyTargetNotFound, got %v", err)
	}

	// ストアに何も書かれていないことを確認
	msgs, err := s.Messages.FindByParticipants(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("FindByParticipants failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected no partial writes, got %d messages", len(msgs))
	}
}

// TestSendMessage_DirectionalBlocking block(B,A)はA→Bだけを止める
func TestSendMessage_DirectionalBlocking(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	if err := s.BlockUser(ctx, "u2", "u1"); err != nil {
		t.Fatalf("BlockUser failed: %v", err)
	}

	// u1→u2 は拒否される
	if _, err := s.SendMessage(ctx, "u1", "u2", "hello", nil); !errors.Is(err, ErrSenderBlocked) {
		t.Errorf("Expected ErrSenderBlocked for u1→u2, got %v", err)
	}

	// u2→u1 は成功する（ブロックは方向性あり）
	if _, err := s.SendMessage(ctx, "u2", "u1", "hello", nil); err != nil {
		t.Errorf("u2→u1 should succeed while u2 blocks u1: %v", err)
	}

	// 拒否された送信は書き込まれていない
	msgs, _ := s.Messages.FindByParticipants(ctx, "u1", "u2")
	if len(msgs) != 1 {
		t.Errorf("Expected exactly 1 stored message, got %d", len(msgs))
	}
}

// TestBlockUnblockScenario ブロック→送信失敗→解除→送信成功→閲覧で既読化
func TestBlockUnblockScenario(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	if err := s.BlockUser(ctx, "u2", "u1"); err != nil {
		t.Fatalf("BlockUser failed: %v", err)
	}
	if _, err := s.SendMessage(ctx, "u1", "u2", "hello", nil); !errors.Is(err, ErrSenderBlocked) {
		t.Fatalf("Expected ErrSenderBlocked, got %v", err)
	}

	if err := s.UnblockUser(ctx, "u2", "u1"); err != nil {
		t.Fatalf("UnblockUser failed: %v", err)
	}

	msg, err := s.SendMessage(ctx, "u1", "u2", "hello", nil)
	if err != nil {
		t.Fatalf("SendMessage after unblock failed: %v", err)
	}
	if msg.IsSeen {
		t.Error("New message should have isSeen=false")
	}

	forest, err := s.GetConversation(ctx, "u2", "u1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(forest) != 1 {
		t.Fatalf("Expected 1 root message, got %d", len(forest))
	}
	if !forest[0].IsSeen {
		t.Error("Viewing the conversation should mark the message as seen")
	}
	if forest[0].ReplyTo != nil {
		t.Error("Message should be root-level")
	}
}

// TestBlockUser_Duplicate 同一ペアの二重ブロックはErrAlreadyBlocked
func TestBlockUser_Duplicate(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	if err := s.BlockUser(ctx, "u2", "u1"); err != nil {
		t.Fatalf("First block failed: %v", err)
	}
	if err := s.BlockUser(ctx, "u2", "u1"); !errors.Is(err, store.ErrAlreadyBlocked) {
		t.Errorf("Expected ErrAlreadyBlocked, got %v", err)
	}
}

// TestUnblockUser_NoActiveBlock 存在しないブロックの解除はErrNoActiveBlock
func TestUnblockUser_NoActiveBlock(t *testing.T) {
	s := newTestService()

	if err := s.UnblockUser(context.Background(), "u2", "u1"); !errors.Is(err, store.ErrNoActiveBlock) {
		t.Errorf("Expected ErrNoActiveBlock, got %v", err)
	}
}

// TestGetConversation_SeenIdempotent 2回目の閲覧で既読件数が変わらない
func TestGetConversation_SeenIdempotent(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.SendMessage(ctx, "u1", "u2", "hello", nil); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	if _, err := s.GetConversation(ctx, "u2", "u1"); err != nil {
		t.Fatalf("First GetConversation failed: %v", err)
	}

	// 2回目の呼び出しでは既読化対象が残っていない
	affected, err := s.Messages.MarkSeen(ctx, "u2", "u1")
	if err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("Second seen-marking should affect 0 messages, got %d", affected)
	}
}

// TestGetConversation_ReplyChain 返信がスレッドとして返る
func TestGetConversation_ReplyChain(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	m1, err := s.SendMessage(ctx, "u1", "u2", "hi", nil)
	if err != nil {
		t.Fatalf("SendMessage m1 failed: %v", err)
	}
	m2, err := s.SendMessage(ctx, "u2", "u1", "hey", &m1.ID)
	if err != nil {
		t.Fatalf("SendMessage m2 failed: %v", err)
	}

	forest, err := s.GetConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}

	if len(forest) != 1 {
		t.Fatalf("Expected forest [m1{replies:[m2]}], got %d roots", len(forest))
	}
	if forest[0].ID != m1.ID {
		t.Errorf("Expected root %s, got %s", m1.ID, forest[0].ID)
	}
	if len(forest[0].Replies) != 1 || forest[0].Replies[0].ID != m2.ID {
		t.Errorf("Expected %s as reply of %s", m2.ID, m1.ID)
	}
}

// TestDeleteMessage_Cascade 直下の返信ごと削除される
func TestDeleteMessage_Cascade(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	m1, _ := s.SendMessage(ctx, "u1", "u2", "root", nil)
	m2, _ := s.SendMessage(ctx, "u2", "u1", "reply", &m1.ID)

	deleted, err := s.DeleteMessage(ctx, m1.ID)
	if err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if !deleted {
		t.Fatal("Expected delete to report success")
	}

	for _, id := range []string{m1.ID, m2.ID} {
		found, err := s.Messages.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found != nil {
			t.Errorf("Message %s should be gone after cascade delete", id)
		}
	}
}

// TestDeleteMessage_NotFound 存在しないIDの削除はfalse
func TestDeleteMessage_NotFound(t *testing.T) {
	s := newTestService()

	deleted, err := s.DeleteMessage(context.Background(), "missing-id")
	if err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if deleted {
		t.Error("Delete of missing message should report false")
	}
}

// TestDeleteMessage_SingleLevelCascade 孫返信は残り、閲覧時に孤児昇格する
func TestDeleteMessage_SingleLevelCascade(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	m1, _ := s.SendMessage(ctx, "u1", "u2", "root", nil)
	m2, _ := s.SendMessage(ctx, "u2", "u1", "child", &m1.ID)
	m3, _ := s.SendMessage(ctx, "u1", "u2", "grandchild", &m2.ID)

	if _, err := s.DeleteMessage(ctx, m1.ID); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}

	// 孫は削除されない（単階層カスケード）
	found, _ := s.Messages.FindByID(ctx, m3.ID)
	if found == nil {
		t.Fatal("Grandchild should survive a single-level cascade")
	}

	forest, err := s.GetConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(forest) != 1 || forest[0].ID != m3.ID {
		t.Errorf("Expected grandchild promoted to orphan root, got %+v", forest)
	}
}

// TestEditMessage 本文が差し替わりupdatedAtが進む
func TestEditMessage(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	m1, _ := s.SendMessage(ctx, "u1", "u2", "before", nil)

	edited, err := s.EditMessage(ctx, m1.ID, "after")
	if err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	if edited == nil {
		t.Fatal("Expected edited message, got nil")
	}
	if edited.Content != "after" {
		t.Errorf("Expected content 'after', got %q", edited.Content)
	}
	if edited.UpdatedAt.Before(m1.UpdatedAt) {
		t.Error("Edit should refresh updatedAt")
	}
}

// TestEditMessage_NotFound 存在しないIDの編集はnil
func TestEditMessage_NotFound(t *testing.T) {
	s := newTestService()

	edited, err := s.EditMessage(context.Background(), "missing-id", "whatever")
	if err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	if edited != nil {
		t.Errorf("Expected nil for missing message, got %+v", edited)
	}
}

// TestSendMessage_ProfanityFilter 禁止語は決定的に伏せ字化され、送信自体は成功する
func TestSendMessage_ProfanityFilter(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	msg, err := s.SendMessage(ctx, "u1", "u2", "you are an asshole", nil)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if msg.Content == "you are an asshole" {
		t.Error("Profanity should be censored before persistence")
	}

	// ストアに保存された内容もフィルタ後のもの
	stored, _ := s.Messages.FindByID(ctx, msg.ID)
	if stored.Content != msg.Content {
		t.Errorf("Stored content %q differs from returned content %q", stored.Content, msg.Content)
	}
}
