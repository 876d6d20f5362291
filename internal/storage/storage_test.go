package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestNextTicketNumberIncrements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.NextTicketNumber(ctx)
	if err != nil {
		t.Fatalf("next ticket number: %v", err)
	}
	second, err := store.NextTicketNumber(ctx)
	if err != nil {
		t.Fatalf("next ticket number: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected 1 then 2, got %d then %d", first, second)
	}
}

func TestCreateAndReadTicket(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	number, err := store.NextTicketNumber(ctx)
	if err != nil {
		t.Fatalf("next ticket number: %v", err)
	}
	id, err := store.CreateTicket(ctx, Ticket{
		RequesterID:    "u1",
		ChannelID:      "c1",
		SequenceNumber: number,
		Category:       "Report",
		Status:         TicketOpen,
		ReportedUser:   "u2",
		Reason:         "spamming",
		ProofURLs:      []string{"https://example.com/a.png"},
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected nonzero ticket id")
	}

	ticket, err := store.TicketByChannel(ctx, "c1")
	if err != nil {
		t.Fatalf("ticket by channel: %v", err)
	}
	if ticket.Status != TicketOpen {
		t.Fatalf("expected open status, got %q", ticket.Status)
	}
	if ticket.SequenceNumber != number {
		t.Fatalf("expected sequence %d, got %d", number, ticket.SequenceNumber)
	}
	if len(ticket.ProofURLs) != 1 || ticket.ProofURLs[0] != "https://example.com/a.png" {
		t.Fatalf("proof urls mismatch: %v", ticket.ProofURLs)
	}

	if _, err := store.TicketByChannel(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCastVoteRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pollID, err := store.CreatePoll(ctx, "target", "pups")
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}

	vote := Vote{PollID: pollID, VoterID: "v1", TargetUserID: "target", Tier: "pups", Direction: VoteUp}
	if err := store.CastVote(ctx, vote); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	vote.Direction = VoteDown
	if err := store.CastVote(ctx, vote); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	poll, err := store.PollByID(ctx, pollID)
	if err != nil {
		t.Fatalf("poll by id: %v", err)
	}
	if poll.Upvotes != 1 || poll.Downvotes != 0 {
		t.Fatalf("expected 1/0 tally, got %d/%d", poll.Upvotes, poll.Downvotes)
	}
}

func TestClosePollIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pollID, err := store.CreatePoll(ctx, "target", "pugs")
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}

	closed, err := store.ClosePoll(ctx, pollID)
	if err != nil {
		t.Fatalf("close poll: %v", err)
	}
	if !closed {
		t.Fatalf("expected first close to report closure")
	}
	closed, err = store.ClosePoll(ctx, pollID)
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if closed {
		t.Fatalf("expected second close to be a no-op")
	}
}

func TestListPollsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreatePoll(ctx, "u1", "pups")
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	second, err := store.CreatePoll(ctx, "u2", "pugs")
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	if _, err := store.ClosePoll(ctx, first); err != nil {
		t.Fatalf("close poll: %v", err)
	}
	if err := store.CastVote(ctx, Vote{PollID: second, VoterID: "v1", TargetUserID: "u2", Tier: "pugs", Direction: VoteUp}); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	polls, err := store.ListPolls(ctx)
	if err != nil {
		t.Fatalf("list polls: %v", err)
	}
	if len(polls) != 2 {
		t.Fatalf("polls = %d, want 2", len(polls))
	}
	if polls[0].ID != second || polls[1].ID != first {
		t.Fatalf("order = [%d %d], want newest first", polls[0].ID, polls[1].ID)
	}
	if !polls[0].Active || polls[0].Upvotes != 1 {
		t.Fatalf("newest poll = %+v, want active with one upvote", polls[0])
	}
	if polls[1].Active {
		t.Fatalf("closed poll reported active")
	}
}

func TestAddVouchCountsAndRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pollID, err := store.CreateRemovalPoll(ctx, "target", "m1", RemovalPendingReason, "pugs")
	if err != nil {
		t.Fatalf("create removal poll: %v", err)
	}

	for i, manager := range []string{"m1", "m2", "m3"} {
		count, err := store.AddVouch(ctx, pollID, manager, "inactive")
		if err != nil {
			t.Fatalf("add vouch %s: %v", manager, err)
		}
		if count != i+1 {
			t.Fatalf("expected count %d, got %d", i+1, count)
		}
	}

	if _, err := store.AddVouch(ctx, pollID, "m2", "again"); !errors.Is(err, ErrAlreadyVouched) {
		t.Fatalf("expected ErrAlreadyVouched, got %v", err)
	}
}

func TestBlacklistLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	added, err := store.AddBlacklist(ctx, BlacklistEntry{UserID: "u1", Reason: "spam", IssuedBy: "bot", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("add blacklist: %v", err)
	}
	if !added {
		t.Fatalf("expected insert")
	}

	added, err = store.AddBlacklist(ctx, BlacklistEntry{UserID: "u1", Reason: "again", IssuedBy: "bot", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("re-add blacklist: %v", err)
	}
	if added {
		t.Fatalf("expected re-add to be a no-op")
	}

	blacklisted, err := store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if !blacklisted {
		t.Fatalf("expected u1 blacklisted")
	}

	removed, err := store.RemoveBlacklist(ctx, "u1")
	if err != nil {
		t.Fatalf("remove blacklist: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal")
	}
	removed, err = store.RemoveBlacklist(ctx, "u1")
	if err != nil {
		t.Fatalf("remove absent blacklist: %v", err)
	}
	if removed {
		t.Fatalf("expected second removal to be a no-op")
	}
}

func TestReactionWindowCounting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, messageID := range []string{"m1", "m2", "m3"} {
		recorded, err := store.RecordReaction(ctx, "u1", messageID, "c1", now)
		if err != nil {
			t.Fatalf("record reaction: %v", err)
		}
		if !recorded {
			t.Fatalf("expected reaction %s recorded", messageID)
		}
	}

	recorded, err := store.RecordReaction(ctx, "u1", "m1", "c1", now)
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if recorded {
		t.Fatalf("expected duplicate pair to be skipped")
	}

	count, err := store.DistinctReactionCount(ctx, "u1", "c1", now.Add(-60*time.Second))
	if err != nil {
		t.Fatalf("distinct count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 distinct messages, got %d", count)
	}

	if err := store.PruneReactions(ctx, now.Add(time.Second)); err != nil {
		t.Fatalf("prune reactions: %v", err)
	}
	count, err = store.DistinctReactionCount(ctx, "u1", "c1", now.Add(-60*time.Second))
	if err != nil {
		t.Fatalf("distinct count after prune: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 after prune, got %d", count)
	}
}
