package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type BlacklistEntry struct {
	UserID                string
	Reason                string
	IssuedBy              string
	CustomDuration        bool
	NotificationMessageID string
	NotificationChannelID string
	CreatedAt             time.Time
}

// RecordReaction stores one row per (user, message). Returns false when the
// pair was already recorded.
func (s *Store) RecordReaction(ctx context.Context, userID, messageID, channelID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO translation_reactions (user_id, message_id, channel_id, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, messageID, channelID, at.Unix())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) DistinctReactionCount(ctx context.Context, userID, channelID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT message_id) FROM translation_reactions
		WHERE user_id = ? AND channel_id = ? AND created_at >= ?
	`, userID, channelID, since.Unix()).Scan(&count)
	return count, err
}

func (s *Store) PruneReactions(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_reactions WHERE created_at < ?`, cutoff.Unix())
	return err
}

// AddBlacklist inserts the entry unless the user is already blacklisted.
// Returns false in that case; re-blacklisting is a no-op.
func (s *Store) AddBlacklist(ctx context.Context, entry BlacklistEntry) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO translation_blacklist (
			user_id, reason, issued_by, custom_duration,
			notification_message_id, notification_channel_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.UserID,
		entry.Reason,
		entry.IssuedBy,
		boolToInt(entry.CustomDuration),
		entry.NotificationMessageID,
		entry.NotificationChannelID,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM translation_blacklist WHERE user_id = ?`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) GetBlacklist(ctx context.Context, userID string) (BlacklistEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, reason, issued_by, custom_duration,
			COALESCE(notification_message_id, ''), COALESCE(notification_channel_id, ''), created_at
		FROM translation_blacklist WHERE user_id = ?
	`, userID)
	return scanBlacklist(row)
}

func (s *Store) SetBlacklistNotification(ctx context.Context, userID, channelID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE translation_blacklist SET notification_channel_id = ?, notification_message_id = ? WHERE user_id = ?
	`, channelID, messageID, userID)
	return err
}

// RemoveBlacklist deletes the entry. Unblacklisting an absent user is not an
// error; the bool reports whether a row existed.
func (s *Store) RemoveBlacklist(ctx context.Context, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM translation_blacklist WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpiredBlacklists lists fixed-duration entries created before the cutoff.
// Custom-duration entries are excluded; their expiry is driven by timers.
func (s *Store) ExpiredBlacklists(ctx context.Context, cutoff time.Time) ([]BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, reason, issued_by, custom_duration,
			COALESCE(notification_message_id, ''), COALESCE(notification_channel_id, ''), created_at
		FROM translation_blacklist
		WHERE custom_duration = 0 AND created_at < ?
	`, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BlacklistEntry
	for rows.Next() {
		var entry BlacklistEntry
		var custom int
		var created int64
		if err := rows.Scan(&entry.UserID, &entry.Reason, &entry.IssuedBy, &custom,
			&entry.NotificationMessageID, &entry.NotificationChannelID, &created); err != nil {
			return nil, err
		}
		entry.CustomDuration = custom == 1
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanBlacklist(row *sql.Row) (BlacklistEntry, error) {
	var entry BlacklistEntry
	var custom int
	var created int64
	err := row.Scan(&entry.UserID, &entry.Reason, &entry.IssuedBy, &custom,
		&entry.NotificationMessageID, &entry.NotificationChannelID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BlacklistEntry{}, ErrNotFound
		}
		return BlacklistEntry{}, err
	}
	entry.CustomDuration = custom == 1
	entry.CreatedAt = time.Unix(created, 0)
	return entry, nil
}
