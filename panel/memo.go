package panel

import (
	"fmt"
	"time"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/store"
)

// MemoSummary is the viewer-specific detail of one memo.
type MemoSummary struct {
	Memo         client.Memo
	Display      store.DisplayState
	CompanyWide  bool
	Acknowledged int
	Snoozed      int // snoozes still running at evaluation time
	Pending      int // recipients with no acknowledgment or an elapsed snooze
	ViewerAck    *client.Acknowledgment
}

// MemoPanel is the detail view of one memo for one viewer.
type MemoPanel struct {
	memo     client.Memo
	viewerID string
}

// NewMemoPanel opens a panel for m as seen by viewerID.
func NewMemoPanel(m client.Memo, viewerID string) (*MemoPanel, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("open memo panel: %w", client.ErrMissingID)
	}
	return &MemoPanel{memo: m, viewerID: viewerID}, nil
}

// Summary evaluates the memo against users at now. Nothing is cached, so
// calling it again with a later now reflects snoozes that have ended.
func (p *MemoPanel) Summary(users []client.User, now time.Time) MemoSummary {
	return Summarize(p.memo, p.viewerID, users, now)
}

// Summarize computes a MemoSummary.
func Summarize(m client.Memo, viewerID string, users []client.User, now time.Time) MemoSummary {
	s := MemoSummary{
		Memo:        m,
		Display:     store.DisplayStatus(m, viewerID, now),
		CompanyWide: store.IsCompanyWide(m, users),
	}
	if ack, ok := m.AckFor(viewerID); ok {
		s.ViewerAck = &ack
	}
	seen := make(map[string]bool, len(m.Recipients))
	for _, r := range m.Recipients {
		if seen[r] {
			continue
		}
		seen[r] = true
		ack, ok := m.AckFor(r)
		switch {
		case ok && ack.Status == client.AckAcknowledged:
			s.Acknowledged++
		case ok && ack.Status == client.AckSnoozed && ack.SnoozedUntil != nil && ack.SnoozedUntil.After(now):
			s.Snoozed++
		default:
			s.Pending++
		}
	}
	return s
}
