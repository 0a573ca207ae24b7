package store

import (
	"time"

	"github.com/mycelian/mycelian-desk/client"
)

// DisplayState is how a memo presents to one viewer at one instant.
type DisplayState string

const (
	DisplayActive    DisplayState = "active"
	DisplaySnoozed   DisplayState = "snoozed"
	DisplayDeleted   DisplayState = "deleted"
	DisplayExpired   DisplayState = "expired"
	DisplayCancelled DisplayState = "cancelled"
)

// DisplayStatus derives the viewer-specific state of m at now:
//
//	deleted  if the memo status is deleted
//	snoozed  if the viewer's acknowledgment is snoozed and snoozedUntil > now
//	otherwise the memo status
//
// Nothing is stored and no timer advances the state; callers re-evaluate
// with a fresh now to observe a snooze expiring.
func DisplayStatus(m client.Memo, viewerID string, now time.Time) DisplayState {
	if m.Status == client.MemoDeleted {
		return DisplayDeleted
	}
	if ack, ok := m.AckFor(viewerID); ok && snoozedAt(ack, now) {
		return DisplaySnoozed
	}
	return DisplayState(m.Status)
}

func snoozedAt(ack client.Acknowledgment, now time.Time) bool {
	return ack.Status == client.AckSnoozed && ack.SnoozedUntil != nil && ack.SnoozedUntil.After(now)
}

// IsCompanyWide reports whether m's recipient set equals the set of users
// given. The answer depends on the user list at evaluation time: a memo
// sent to everyone stops counting as company-wide once users are added or
// removed.
func IsCompanyWide(m client.Memo, users []client.User) bool {
	if len(users) == 0 {
		return false
	}
	all := make(map[string]struct{}, len(users))
	for _, u := range users {
		all[u.ID] = struct{}{}
	}
	got := make(map[string]struct{}, len(m.Recipients))
	for _, r := range m.Recipients {
		if _, ok := all[r]; !ok {
			return false
		}
		got[r] = struct{}{}
	}
	return len(got) == len(all)
}

// SplitCompanyWide partitions memos into company-wide and targeted,
// preserving order.
func SplitCompanyWide(memos []client.Memo, users []client.User) (companyWide, targeted []client.Memo) {
	for _, m := range memos {
		if IsCompanyWide(m, users) {
			companyWide = append(companyWide, m)
		} else {
			targeted = append(targeted, m)
		}
	}
	return companyWide, targeted
}

// PendingFor returns the memos that display as active to viewerID and that
// the viewer has not acknowledged. An expired snooze counts as pending.
func PendingFor(memos []client.Memo, viewerID string, now time.Time) []client.Memo {
	var out []client.Memo
	for _, m := range memos {
		if DisplayStatus(m, viewerID, now) != DisplayActive {
			continue
		}
		if ack, ok := m.AckFor(viewerID); ok && ack.Status == client.AckAcknowledged {
			continue
		}
		out = append(out, m)
	}
	return out
}
