package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrAlreadyVouched = errors.New("already vouched")

const (
	RemovalActive = "active"
	RemovalClosed = "closed"

	// Reason used until the initiating manager casts their own vouch.
	RemovalPendingReason = "Pending Reason"
)

type RemovalPoll struct {
	ID                int64
	TargetUserID      string
	InitiatorID       string
	Reason            string
	Status            string
	Tier              string
	VouchMessageID    string
	DemotionMessageID string
	CreatedAt         time.Time
}

type RemovalVouch struct {
	PollID    int64
	ManagerID string
	Reason    string
}

func (s *Store) CreateRemovalPoll(ctx context.Context, targetUserID, initiatorID, reason, tier string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO removal_polls (target_user_id, initiator_id, reason, status, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, targetUserID, initiatorID, reason, RemovalActive, tier, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) RemovalPollByID(ctx context.Context, id int64) (RemovalPoll, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target_user_id, initiator_id, reason, status, tier, COALESCE(vouch_message_id, ''), COALESCE(demotion_message_id, ''), created_at
		FROM removal_polls WHERE id = ?
	`, id)
	return scanRemovalPoll(row)
}

func (s *Store) ActiveRemovalPoll(ctx context.Context, targetUserID, tier string) (RemovalPoll, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target_user_id, initiator_id, reason, status, tier, COALESCE(vouch_message_id, ''), COALESCE(demotion_message_id, ''), created_at
		FROM removal_polls WHERE target_user_id = ? AND tier = ? AND status = ?
		ORDER BY id DESC LIMIT 1
	`, targetUserID, tier, RemovalActive)
	return scanRemovalPoll(row)
}

func (s *Store) SetRemovalMessage(ctx context.Context, id int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE removal_polls SET vouch_message_id = ? WHERE id = ?`, messageID, id)
	return err
}

func (s *Store) SetDemotionMessage(ctx context.Context, id int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE removal_polls SET demotion_message_id = ? WHERE id = ?`, messageID, id)
	return err
}

func (s *Store) UpdateRemovalReason(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE removal_polls SET reason = ? WHERE id = ?`, reason, id)
	return err
}

// AddVouch records the vouch and returns the poll's new vouch count. A
// repeat vouch from the same manager trips the primary key and is reported
// as ErrAlreadyVouched.
func (s *Store) AddVouch(ctx context.Context, pollID int64, managerID, reason string) (count int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO removal_vouches (poll_id, manager_id, reason, created_at)
		VALUES (?, ?, ?, ?)
	`, pollID, managerID, reason, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrAlreadyVouched
		}
		return 0, err
	}
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM removal_vouches WHERE poll_id = ?`, pollID).Scan(&count); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) VouchCount(ctx context.Context, pollID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM removal_vouches WHERE poll_id = ?`, pollID).Scan(&count)
	return count, err
}

// CloseRemovalPoll flips the poll to closed. Returns false when it was
// already closed.
func (s *Store) CloseRemovalPoll(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE removal_polls SET status = ? WHERE id = ? AND status = ?
	`, RemovalClosed, id, RemovalActive)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) CountActiveRemovalPolls(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM removal_polls WHERE status = ?`, RemovalActive).Scan(&count)
	return count, err
}

func scanRemovalPoll(row *sql.Row) (RemovalPoll, error) {
	var poll RemovalPoll
	var created int64
	err := row.Scan(&poll.ID, &poll.TargetUserID, &poll.InitiatorID, &poll.Reason, &poll.Status, &poll.Tier, &poll.VouchMessageID, &poll.DemotionMessageID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RemovalPoll{}, ErrNotFound
		}
		return RemovalPoll{}, err
	}
	poll.CreatedAt = time.Unix(created, 0)
	return poll, nil
}
