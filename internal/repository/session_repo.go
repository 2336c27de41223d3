package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/agriassist/internal/domain"
)

// SessionRepository handles session and message persistence
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// RecordTurn upserts the session and appends the user message followed by
// the assistant message. The session row is created on first use only;
// user_id, language and created_at of an existing session are never
// overwritten. A turn from a user other than the session owner fails with
// domain.ErrInvalidRequest and nothing is written. It reports whether the
// session had no messages before.
func (r *SessionRepository) RecordTurn(ctx context.Context, turn domain.Turn, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	language := turn.Language
	if language == "" {
		language = "en"
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, language, user_context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, turn.SessionID, turn.UserID, language, turn.UserContext, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to upsert session: %w", err)
	}

	var owner string
	if err := tx.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE id = ?`, turn.SessionID,
	).Scan(&owner); err != nil {
		return false, fmt.Errorf("failed to read session owner: %w", err)
	}
	if owner != turn.UserID {
		return false, fmt.Errorf("%w: session belongs to another user", domain.ErrInvalidRequest)
	}

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, turn.SessionID,
	).Scan(&existing); err != nil {
		return false, fmt.Errorf("failed to count messages: %w", err)
	}

	messages := []domain.Message{
		{Role: domain.RoleUser, Content: turn.UserMessage},
		{Role: domain.RoleAssistant, Content: turn.AssistantMessage, Source: turn.Source},
	}
	for _, m := range messages {
		var source sql.NullString
		if m.Source != "" {
			source = sql.NullString{String: string(m.Source), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, role, content, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), turn.SessionID, m.Role, m.Content, source, now); err != nil {
			return false, fmt.Errorf("failed to append %s message: %w", m.Role, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, turn.SessionID,
	); err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit turn: %w", err)
	}

	return existing == 0, nil
}

// Get retrieves a session by ID with its messages in chronological order
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	session := &domain.Session{}
	var userContext sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, language, user_context, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.UserID, &session.Language, &userContext,
		&session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.UserContext = userContext.String

	messages, err := r.queryMessages(ctx, `
		SELECT id, session_id, role, content, source, created_at
		FROM messages WHERE session_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, err
	}
	session.Messages = messages

	return session, nil
}

// Owner returns the user that created the session, or "" when it does not exist
func (r *SessionRepository) Owner(ctx context.Context, sessionID string) (string, error) {
	var owner string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE id = ?`, sessionID,
	).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return owner, err
}

// RecentMessages returns at most limit of the newest messages, oldest first
func (r *SessionRepository) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	messages, err := r.queryMessages(ctx, `
		SELECT id, session_id, role, content, source, created_at
		FROM messages WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListByUser retrieves a user's sessions, newest first, without messages
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, language, user_context, created_at, updated_at
		FROM sessions WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session := &domain.Session{}
		var userContext sql.NullString
		if err := rows.Scan(&session.ID, &session.UserID, &session.Language, &userContext,
			&session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		session.UserContext = userContext.String
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (r *SessionRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		var source sql.NullString

		if err := rows.Scan(&message.ID, &message.SessionID, &message.Role,
			&message.Content, &source, &message.CreatedAt); err != nil {
			return nil, err
		}
		message.Source = domain.Source(source.String)
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
