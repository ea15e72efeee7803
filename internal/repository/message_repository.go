package repository

import (
	"context"

	"github.com/iliyamo/tour-booking/internal/model"
)

// MessageRepo is the MySQL MessageRepository.  Conversations are stored
// once per unordered user pair as (user_low, user_high).
type MessageRepo struct{ q querier }

func (r *MessageRepo) FindConversation(ctx context.Context, low, high uint64) (*model.Conversation, error) {
	var c model.Conversation
	err := r.q.QueryRowContext(ctx,
		"SELECT id, user_low, user_high, created_at FROM conversations WHERE user_low=? AND user_high=?",
		low, high).Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *MessageRepo) CreateConversation(ctx context.Context, c *model.Conversation) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO conversations (user_low, user_high) VALUES (?,?)", c.UserLow, c.UserHigh)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func (r *MessageRepo) GetConversation(ctx context.Context, id uint64) (*model.Conversation, error) {
	var c model.Conversation
	err := r.q.QueryRowContext(ctx,
		"SELECT id, user_low, user_high, created_at FROM conversations WHERE id=?", id).
		Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *MessageRepo) ListConversations(ctx context.Context, userID uint64) ([]model.Conversation, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_low, user_high, created_at FROM conversations
		 WHERE user_low=? OR user_high=? ORDER BY created_at DESC, id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *MessageRepo) Append(ctx context.Context, m *model.Message) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, sender_id, receiver_id, body) VALUES (?,?,?,?)",
		m.ConversationID, m.SenderID, m.ReceiverID, m.Body)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// ListMessages returns the conversation in insertion order.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID uint64) ([]model.Message, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, receiver_id, body, created_at
		 FROM messages WHERE conversation_id=? ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
