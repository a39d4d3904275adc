package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsforge/tsforge/pkg/models"
)

// ConversationService owns the append-only message log each auto-detection
// run writes to, and the catch-up query WebSocket clients use to replay
// history on reconnect (spec.md §4.11, §6).
type ConversationService struct {
	pool *pgxpool.Pool
}

// NewConversationService wraps a connection pool for conversation writes.
func NewConversationService(pool *pgxpool.Pool) *ConversationService {
	return &ConversationService{pool: pool}
}

// Create starts a new conversation for a file in the "running" state.
func (s *ConversationService) Create(ctx context.Context, fileID string, kind models.ConversationKind) (*models.Conversation, error) {
	const q = `
		INSERT INTO conversations (file_id, kind, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	c := &models.Conversation{FileID: fileID, Kind: kind, Status: models.ConversationRunning}
	err := s.pool.QueryRow(ctx, q, fileID, kind, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("services: create conversation: %w", err)
	}
	return c, nil
}

// UpdateStatus transitions a conversation's lifecycle (running → completed
// / failed / cancelled).
func (s *ConversationService) UpdateStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	const q = `UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("services: update conversation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Append adds one message to the log, assigning the next sequence number
// under a row lock so concurrent sub-agent goroutines serialize onto a
// strictly increasing cursor (the WebSocket catch-up key).
func (s *ConversationService) Append(ctx context.Context, convID string, role models.MessageRole, agent models.AgentRole, content, imageBase64 string) (*models.ConversationMessage, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("services: begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT 1 FROM conversations WHERE id = $1 FOR UPDATE`, convID); err != nil {
		return nil, fmt.Errorf("services: lock conversation: %w", err)
	}

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM conversation_messages
		 WHERE conversation_id = $1`,
		convID,
	).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("services: next sequence number: %w", err)
	}

	m := &models.ConversationMessage{
		ConversationID: convID,
		SequenceNumber: next,
		Role:           role,
		Agent:          agent,
		Content:        content,
		ImageBase64:    imageBase64,
	}

	const insert = `
		INSERT INTO conversation_messages (conversation_id, sequence_number, role, agent, content, image_base64)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	if err := tx.QueryRow(ctx, insert, convID, next, role, agent, content, imageBase64).
		Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("services: insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("services: commit append: %w", err)
	}
	return m, nil
}

// MessagesSince returns every message with sequence_number > afterSeq, in
// order, for a reconnecting WebSocket client to replay.
func (s *ConversationService) MessagesSince(ctx context.Context, convID string, afterSeq int) ([]models.ConversationMessage, error) {
	const q = `
		SELECT id, conversation_id, sequence_number, role, agent, content, image_base64, created_at
		FROM conversation_messages
		WHERE conversation_id = $1 AND sequence_number > $2
		ORDER BY sequence_number`

	rows, err := s.pool.Query(ctx, q, convID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("services: messages since %d: %w", afterSeq, err)
	}
	defer rows.Close()

	var out []models.ConversationMessage
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SequenceNumber, &m.Role,
			&m.Agent, &m.Content, &m.ImageBase64, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestByFileAndKind returns the most recently created conversation of
// kind for a file, used by the WebSocket handlers to resume an existing
// conversation on reconnect rather than always starting a fresh one.
func (s *ConversationService) LatestByFileAndKind(ctx context.Context, fileID string, kind models.ConversationKind) (*models.Conversation, error) {
	const q = `
		SELECT id, file_id, kind, status, created_at, updated_at
		FROM conversations WHERE file_id = $1 AND kind = $2
		ORDER BY created_at DESC LIMIT 1`

	c := &models.Conversation{}
	err := s.pool.QueryRow(ctx, q, fileID, kind).Scan(&c.ID, &c.FileID, &c.Kind, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("services: latest conversation for %s/%s: %w", fileID, kind, err)
	}
	return c, nil
}

// Get fetches a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	const q = `SELECT id, file_id, kind, status, created_at, updated_at FROM conversations WHERE id = $1`
	c := &models.Conversation{}
	err := s.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.FileID, &c.Kind, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("services: get conversation %s: %w", id, err)
	}
	return c, nil
}
