package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liliang-cn/agriassist/internal/domain"
)

// UsageRepository maintains per-user usage counters
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// RecordUsage upserts the user's stats: one more message, one more session
// when newSession is set, lastActiveAt = now, and sample added to the
// user's sample set. The set keeps only the newest sampleLimit entries.
func (r *UsageRepository) RecordUsage(ctx context.Context, userID string, newSession bool, sample string, now time.Time, sampleLimit int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessions := 0
	if newSession {
		sessions = 1
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_usage_stats (user_id, total_sessions, total_messages, last_active_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_sessions = total_sessions + excluded.total_sessions,
			total_messages = total_messages + 1,
			last_active_at = excluded.last_active_at
	`, userID, sessions, now); err != nil {
		return fmt.Errorf("failed to upsert usage stats: %w", err)
	}

	if sample != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO user_question_samples (user_id, sample, created_at)
			VALUES (?, ?, ?)
		`, userID, sample, now); err != nil {
			return fmt.Errorf("failed to add question sample: %w", err)
		}

		if sampleLimit > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM user_question_samples
				WHERE user_id = ? AND id NOT IN (
					SELECT id FROM user_question_samples
					WHERE user_id = ?
					ORDER BY id DESC
					LIMIT ?
				)
			`, userID, userID, sampleLimit); err != nil {
				return fmt.Errorf("failed to trim question samples: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage stats: %w", err)
	}
	return nil
}

// Get retrieves the usage stats of a user
func (r *UsageRepository) Get(ctx context.Context, userID string) (*domain.UsageStats, error) {
	stats := &domain.UsageStats{UserID: userID}

	err := r.db.QueryRowContext(ctx, `
		SELECT total_sessions, total_messages, last_active_at
		FROM user_usage_stats WHERE user_id = ?
	`, userID).Scan(&stats.TotalSessions, &stats.TotalMessages, &stats.LastActiveAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT sample FROM user_question_samples
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats.QuestionSamples = []string{}
	for rows.Next() {
		var sample string
		if err := rows.Scan(&sample); err != nil {
			return nil, err
		}
		stats.QuestionSamples = append(stats.QuestionSamples, sample)
	}

	return stats, rows.Err()
}
