// Package thread rebuilds reply forests from flat conversation lists.
package thread

import "fuwamatch/internal/model"

// Build turns a time-ordered flat message list into an ordered forest
// of reply trees. 2パス・O(n): 1パス目で全ノードをマップ化し、2パス目で
// 親に繋ぐ。親がフェッチ範囲外か削除済みの場合、その返信は捨てずに
// ルートへ昇格させる（孤児昇格）
func Build(messages []model.Message) []*model.ThreadMessage {
	nodes := make(map[string]*model.ThreadMessage, len(messages))
	forest := make([]*model.ThreadMessage, 0, len(messages))

	for _, msg := range messages {
		nodes[msg.ID] = &model.ThreadMessage{
			Message: msg,
			Replies: []*model.ThreadMessage{},
		}
	}

	for _, msg := range messages {
		node := nodes[msg.ID]

		if msg.ReplyTo == nil {
			forest = append(forest, node)
			continue
		}

		parent, ok := nodes[*msg.ReplyTo]
		if ok {
			parent.Replies = append(parent.Replies, node)
		} else {
			// 孤児昇格
			forest = append(forest, node)
		}
	}

	return forest
}
