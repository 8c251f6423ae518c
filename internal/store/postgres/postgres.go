// Package postgres implements the store interfaces on PostgreSQL via pgx.
// Uniqueness constraints on whatsapp_id and whatsapp_message_id make the
// upsert operations atomic: the loser of a concurrent insert race resolves
// to the existing row instead of erroring.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/store"
)

// Store is a pgx-backed implementation of store.Store.
type Store struct {
	db *pgxpool.Pool
}

// New creates a postgres store from an existing pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pgx pool against the given DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

const conversationColumns = `id, whatsapp_id, contact_name, contact_phone, department_id,
	assigned_to, status, last_message_at, first_response_at, response_count,
	follow_up_at, is_ai_handled, created_at, updated_at, deleted_at`

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	conv := &model.Conversation{}
	err := row.Scan(
		&conv.ID, &conv.WhatsAppID, &conv.ContactName, &conv.ContactPhone, &conv.DepartmentID,
		&conv.AssignedTo, &conv.Status, &conv.LastMessageAt, &conv.FirstResponseAt, &conv.ResponseCount,
		&conv.FollowUpAt, &conv.AIHandled, &conv.CreatedAt, &conv.UpdatedAt, &conv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) UpsertConversation(ctx context.Context, waID string, defaults model.ConversationDefaults) (*model.Conversation, bool, error) {
	now := time.Now().UTC()
	insert := fmt.Sprintf(`
		INSERT INTO conversations (
			id, whatsapp_id, contact_name, contact_phone, department_id,
			status, last_message_at, response_count, is_ai_handled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, false, $8, $8)
		ON CONFLICT (whatsapp_id) DO NOTHING
		RETURNING %s`, conversationColumns)

	conv, err := scanConversation(s.db.QueryRow(ctx, insert,
		uuid.Must(uuid.NewV7()).String(), waID, defaults.ContactName, defaults.ContactPhone,
		defaults.DepartmentID, model.ConversationOpen, now, now,
	))
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to upsert conversation: %w", err)
	}

	// Conflict: someone else holds the row; fetch it.
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE whatsapp_id = $1`, conversationColumns)
	conv, err = scanConversation(s.db.QueryRow(ctx, query, waID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch conversation after conflict: %w", err)
	}
	return conv, false, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE id = $1 AND deleted_at IS NULL`, conversationColumns)
	conv, err := scanConversation(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) ListConversations(ctx context.Context, filter model.ConversationFilter) (*model.ListConversationsResponse, error) {
	where := "deleted_at IS NULL"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where += " AND status = " + arg(filter.Status)
	}
	if filter.DepartmentID != "" {
		where += " AND department_id = " + arg(filter.DepartmentID)
	}
	if filter.AssignedTo != "" {
		where += " AND assigned_to = " + arg(filter.AssignedTo)
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where += fmt.Sprintf(" AND (contact_name ILIKE %s OR contact_phone LIKE %s)", p, p)
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM conversations WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE %s ORDER BY last_message_at DESC LIMIT %s OFFSET %s`,
		conversationColumns, where, arg(limit), arg(filter.Offset))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, *conv)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", rows.Err())
	}

	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       filter.Offset+len(convs) < total,
	}, nil
}

func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE conversations SET last_message_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConversationNotFound
	}
	return nil
}

func (s *Store) RecordOutboundStats(ctx context.Context, id string, at time.Time) (*model.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE conversations
		SET last_message_at = $2,
		    response_count = response_count + 1,
		    first_response_at = COALESCE(first_response_at, $2),
		    updated_at = now()
		WHERE id = $1
		RETURNING %s`, conversationColumns)

	conv, err := scanConversation(s.db.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to record outbound stats: %w", err)
	}
	return conv, nil
}

func (s *Store) SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE conversations SET status = $2, updated_at = now()
		WHERE id = $1 RETURNING %s`, conversationColumns)
	conv, err := scanConversation(s.db.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to set conversation status: %w", err)
	}
	return conv, nil
}

func (s *Store) AssignConversation(ctx context.Context, id, userID string) (*model.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE conversations SET assigned_to = $2, status = $3, updated_at = now()
		WHERE id = $1 RETURNING %s`, conversationColumns)
	conv, err := scanConversation(s.db.QueryRow(ctx, query, id, userID, model.ConversationOpen))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to assign conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) SetFollowUp(ctx context.Context, id string, at time.Time) (*model.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE conversations SET follow_up_at = $2, updated_at = now()
		WHERE id = $1 RETURNING %s`, conversationColumns)
	conv, err := scanConversation(s.db.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to set follow-up: %w", err)
	}
	return conv, nil
}

func (s *Store) SoftDeleteConversation(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE conversations SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConversationNotFound
	}
	return nil
}

const messageColumns = `id, conversation_id, whatsapp_message_id, direction, type, content,
	media_url, mime_type, sender_id, status, read_at, is_ai_generated, created_at, updated_at`

func scanMessage(row pgx.Row) (*model.Message, error) {
	msg := &model.Message{}
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.ProviderMessageID, &msg.Direction, &msg.Type, &msg.Content,
		&msg.MediaURL, &msg.MimeType, &msg.SenderID, &msg.Status, &msg.ReadAt, &msg.AIGenerated,
		&msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, bool, error) {
	id := msg.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	insert := fmt.Sprintf(`
		INSERT INTO messages (
			id, conversation_id, whatsapp_message_id, direction, type, content,
			media_url, mime_type, sender_id, status, is_ai_generated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (whatsapp_message_id) DO NOTHING
		RETURNING %s`, messageColumns)

	stored, err := scanMessage(s.db.QueryRow(ctx, insert,
		id, msg.ConversationID, msg.ProviderMessageID, msg.Direction, msg.Type, msg.Content,
		msg.MediaURL, msg.MimeType, msg.SenderID, msg.Status, msg.AIGenerated,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert message: %w", err)
	}

	existing, err := s.GetMessageByProviderID(ctx, msg.ProviderMessageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch message after conflict: %w", err)
	}
	return existing, false, nil
}

func (s *Store) GetMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM messages WHERE whatsapp_message_id = $1`, messageColumns)
	msg, err := scanMessage(s.db.QueryRow(ctx, query, providerMessageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (s *Store) AdvanceMessageStatus(ctx context.Context, providerMessageID string, status model.MessageStatus) (*model.Message, bool, error) {
	// The WHERE clause encodes the monotonic union: sent -> delivered -> read,
	// failed only from sent. A regressive or duplicate event matches no row.
	query := fmt.Sprintf(`
		UPDATE messages
		SET status = $2,
		    read_at = CASE WHEN $2 = 'read' AND read_at IS NULL THEN now() ELSE read_at END,
		    updated_at = now()
		WHERE whatsapp_message_id = $1
		  AND (
		        ($2 = 'delivered' AND status = 'sent')
		     OR ($2 = 'read' AND status IN ('sent', 'delivered'))
		     OR ($2 = 'failed' AND status = 'sent')
		  )
		RETURNING %s`, messageColumns)

	msg, err := scanMessage(s.db.QueryRow(ctx, query, providerMessageID, status))
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to advance message status: %w", err)
	}

	existing, err := s.GetMessageByProviderID(ctx, providerMessageID)
	if errors.Is(err, store.ErrMessageNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC LIMIT $2 OFFSET $3`, messageColumns)

	rows, err := s.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", rows.Err())
	}
	return msgs, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, role, department_id, avatar, is_active, created_at, deleted_at
		FROM users WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.DepartmentID,
		&user.Avatar, &user.Active, &user.CreatedAt, &user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Store) DepartmentBySlug(ctx context.Context, slug string) (*model.Department, error) {
	dept := &model.Department{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, slug FROM departments WHERE slug = $1`, slug,
	).Scan(&dept.ID, &dept.Name, &dept.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return dept, nil
}
