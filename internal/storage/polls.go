package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrAlreadyVoted = errors.New("already voted")

const (
	VoteUp   = "up"
	VoteDown = "down"
)

type Poll struct {
	ID           int64
	TargetUserID string
	Tier         string
	Upvotes      int
	Downvotes    int
	Active       bool
	MessageID    string
	CreatedAt    time.Time
}

type Vote struct {
	PollID       int64
	VoterID      string
	TargetUserID string
	Tier         string
	Direction    string
}

func (s *Store) CreatePoll(ctx context.Context, targetUserID, tier string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO polls (target_user_id, tier, upvotes, downvotes, active, created_at)
		VALUES (?, ?, 0, 0, 1, ?)
	`, targetUserID, tier, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) PollByID(ctx context.Context, id int64) (Poll, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target_user_id, tier, upvotes, downvotes, active, COALESCE(message_id, ''), created_at
		FROM polls WHERE id = ?
	`, id)
	return scanPoll(row)
}

func (s *Store) ActivePoll(ctx context.Context, targetUserID, tier string) (Poll, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target_user_id, tier, upvotes, downvotes, active, COALESCE(message_id, ''), created_at
		FROM polls WHERE target_user_id = ? AND tier = ? AND active = 1
		ORDER BY id DESC LIMIT 1
	`, targetUserID, tier)
	return scanPoll(row)
}

func (s *Store) SetPollMessage(ctx context.Context, id int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE polls SET message_id = ? WHERE id = ?`, messageID, id)
	return err
}

// CastVote records the vote and bumps the matching tally in one transaction.
// A second vote by the same voter on the same poll trips the primary key and
// is reported as ErrAlreadyVoted.
func (s *Store) CastVote(ctx context.Context, vote Vote) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (poll_id, voter_id, target_user_id, tier, direction, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, vote.PollID, vote.VoterID, vote.TargetUserID, vote.Tier, vote.Direction, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrAlreadyVoted
		}
		return err
	}

	column := "upvotes"
	if vote.Direction == VoteDown {
		column = "downvotes"
	}
	_, err = tx.ExecContext(ctx, `UPDATE polls SET `+column+` = `+column+` + 1 WHERE id = ?`, vote.PollID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ClosePoll deactivates the poll. Returns false when the poll was already
// closed, making closure idempotent on the tallies.
func (s *Store) ClosePoll(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE polls SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) VoteByVoter(ctx context.Context, pollID int64, voterID string) (Vote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT poll_id, voter_id, target_user_id, tier, direction
		FROM votes WHERE poll_id = ? AND voter_id = ?
	`, pollID, voterID)

	var vote Vote
	err := row.Scan(&vote.PollID, &vote.VoterID, &vote.TargetUserID, &vote.Tier, &vote.Direction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Vote{}, ErrNotFound
		}
		return Vote{}, err
	}
	return vote, nil
}

// ListPolls returns every poll, newest first.
func (s *Store) ListPolls(ctx context.Context) ([]Poll, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_user_id, tier, upvotes, downvotes, active, COALESCE(message_id, ''), created_at
		FROM polls ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var polls []Poll
	for rows.Next() {
		var poll Poll
		var active int
		var created int64
		if err := rows.Scan(&poll.ID, &poll.TargetUserID, &poll.Tier, &poll.Upvotes,
			&poll.Downvotes, &active, &poll.MessageID, &created); err != nil {
			return nil, err
		}
		poll.Active = active == 1
		poll.CreatedAt = time.Unix(created, 0)
		polls = append(polls, poll)
	}
	return polls, rows.Err()
}

func (s *Store) CountActivePolls(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM polls WHERE active = 1`).Scan(&count)
	return count, err
}

func scanPoll(row *sql.Row) (Poll, error) {
	var poll Poll
	var active int
	var created int64
	err := row.Scan(&poll.ID, &poll.TargetUserID, &poll.Tier, &poll.Upvotes, &poll.Downvotes, &active, &poll.MessageID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Poll{}, ErrNotFound
		}
		return Poll{}, err
	}
	poll.Active = active == 1
	poll.CreatedAt = time.Unix(created, 0)
	return poll, nil
}
