// Package customid encodes component and modal identifiers as a fixed
// four-field form, action:scope:target:page, decoded once at the interaction
// boundary into a typed value. Handlers never split identifier strings
// themselves.
package customid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Action string

const (
	TicketCreate       Action = "ticket_create"
	TicketModal        Action = "ticket_modal"
	TicketClose        Action = "ticket_close"
	TicketClaim        Action = "ticket_claim"
	TicketClaimReason  Action = "ticket_claim_reason"
	TicketDelete       Action = "ticket_delete"
	TicketDeleteReason Action = "ticket_delete_reason"
	TicketReopen       Action = "ticket_reopen"
	Evidence           Action = "evidence"
	ReportDetails      Action = "report_details"
	PartnerDetails     Action = "partner_details"

	Upvote      Action = "upvote"
	Downvote    Action = "downvote"
	EndVote     Action = "end_vote"
	GrantRole   Action = "grant_role"
	Vouch       Action = "vouch"
	VouchReason Action = "vouch_reason"
	UndoRemoval Action = "undo_removal"
	Finalize    Action = "finalize_removal"

	Unblacklist Action = "unblacklist"

	PagePrev Action = "page_prev"
	PageNext Action = "page_next"
)

var known = map[Action]struct{}{
	TicketCreate: {}, TicketModal: {}, TicketClose: {}, TicketClaim: {},
	TicketClaimReason: {}, TicketDelete: {}, TicketDeleteReason: {},
	TicketReopen: {}, Evidence: {}, ReportDetails: {}, PartnerDetails: {},
	Upvote: {}, Downvote: {}, EndVote: {}, GrantRole: {}, Vouch: {},
	VouchReason: {}, UndoRemoval: {}, Finalize: {}, Unblacklist: {},
	PagePrev: {}, PageNext: {},
}

var ErrMalformed = errors.New("malformed custom id")

// ID is a decoded component identifier. Scope carries a tier name, ticket
// category, or list name depending on the action; Target is a snowflake or
// row id; Page is only meaningful for pagination actions.
type ID struct {
	Action Action
	Scope  string
	Target string
	Page   int
}

func (id ID) TargetInt() (int64, error) {
	return strconv.ParseInt(id.Target, 10, 64)
}

func Format(id ID) string {
	return fmt.Sprintf("%s:%s:%s:%d", id.Action, id.Scope, id.Target, id.Page)
}

func Decode(raw string) (ID, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	action := Action(parts[0])
	if _, ok := known[action]; !ok {
		return ID{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, parts[0])
	}
	page, err := strconv.Atoi(parts[3])
	if err != nil {
		return ID{}, fmt.Errorf("%w: bad page in %q", ErrMalformed, raw)
	}
	return ID{Action: action, Scope: parts[1], Target: parts[2], Page: page}, nil
}
