package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	TicketOpen    = "open"
	TicketClaimed = "claimed"
	TicketClosed  = "closed"
	TicketDeleted = "deleted"
)

type Ticket struct {
	ID              int64
	RequesterID     string
	ChannelID       string
	SequenceNumber  int64
	Category        string
	Status          string
	ClaimedBy       string
	TranscriptURL   string
	NoticeMessageID string
	ReportedUser    string
	Reason          string
	ProofURLs       []string
	InviteLink      string
	CreatedAt       time.Time
}

// NextTicketNumber increments the shared ticket counter and returns the new
// value. The increment and read run in one transaction so concurrent
// creations never observe the same number.
func (s *Store) NextTicketNumber(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE ticket_settings SET ticket_counter = ticket_counter + 1 WHERE id = 1`); err != nil {
		return 0, err
	}
	var number int64
	if err = tx.QueryRowContext(ctx, `SELECT ticket_counter FROM ticket_settings WHERE id = 1`).Scan(&number); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return number, nil
}

func (s *Store) CreateTicket(ctx context.Context, ticket Ticket) (int64, error) {
	proof, err := json.Marshal(ticket.ProofURLs)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (
			requester_id, channel_id, sequence_number, category, status,
			claimed_by, transcript_url, notice_message_id, reported_user,
			reason, proof_urls, invite_link, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ticket.RequesterID,
		ticket.ChannelID,
		ticket.SequenceNumber,
		ticket.Category,
		ticket.Status,
		ticket.ClaimedBy,
		ticket.TranscriptURL,
		ticket.NoticeMessageID,
		ticket.ReportedUser,
		ticket.Reason,
		string(proof),
		ticket.InviteLink,
		ticket.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) TicketByChannel(ctx context.Context, channelID string) (Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, requester_id, channel_id, sequence_number, category, status,
			COALESCE(claimed_by, ''), COALESCE(transcript_url, ''),
			COALESCE(notice_message_id, ''), COALESCE(reported_user, ''),
			COALESCE(reason, ''), COALESCE(proof_urls, '[]'),
			COALESCE(invite_link, ''), created_at
		FROM tickets WHERE channel_id = ?
		ORDER BY id DESC LIMIT 1
	`, channelID)
	return scanTicket(row)
}

func (s *Store) UpdateTicketStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tickets SET status = ? WHERE id = ?`, status, id)
	return err
}

func (s *Store) FinalizeTicket(ctx context.Context, id int64, status, actorID, transcriptURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = ?, claimed_by = ?, transcript_url = ? WHERE id = ?
	`, status, actorID, transcriptURL, id)
	return err
}

func (s *Store) SetTicketNotice(ctx context.Context, id int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tickets SET notice_message_id = ? WHERE id = ?`, messageID, id)
	return err
}

func (s *Store) CountTicketsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanTicket(row *sql.Row) (Ticket, error) {
	var ticket Ticket
	var proof string
	var created int64
	err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.ChannelID,
		&ticket.SequenceNumber,
		&ticket.Category,
		&ticket.Status,
		&ticket.ClaimedBy,
		&ticket.TranscriptURL,
		&ticket.NoticeMessageID,
		&ticket.ReportedUser,
		&ticket.Reason,
		&proof,
		&ticket.InviteLink,
		&created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, err
	}
	ticket.CreatedAt = time.Unix(created, 0)
	if proof != "" {
		_ = json.Unmarshal([]byte(proof), &ticket.ProofURLs)
	}
	return ticket, nil
}
