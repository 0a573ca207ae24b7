package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/store"
)

func TestMemoSummary(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	later := now.Add(10 * time.Minute)
	m := client.Memo{
		ID:         "m1",
		Status:     client.MemoActive,
		Recipients: []string{"a", "b", "c", "d"},
		Acknowledgments: []client.Acknowledgment{
			{UserID: "a", Status: client.AckAcknowledged},
			{UserID: "b", Status: client.AckSnoozed, SnoozedUntil: &later},
		},
	}
	users := []client.User{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	p, err := NewMemoPanel(m, "b")
	require.NoError(t, err)

	s := p.Summary(users, now)
	assert.Equal(t, store.DisplaySnoozed, s.Display)
	assert.True(t, s.CompanyWide)
	assert.Equal(t, 1, s.Acknowledged)
	assert.Equal(t, 1, s.Snoozed)
	assert.Equal(t, 2, s.Pending)
	require.NotNil(t, s.ViewerAck)
	assert.Equal(t, client.AckSnoozed, s.ViewerAck.Status)

	s = p.Summary(users[:3], later)
	assert.Equal(t, store.DisplayActive, s.Display, "snooze ended at its until instant")
	assert.False(t, s.CompanyWide)
	assert.Equal(t, 3, s.Pending)
}

func TestNewMemoPanel_RequiresID(t *testing.T) {
	_, err := NewMemoPanel(client.Memo{}, "u1")
	assert.ErrorIs(t, err, client.ErrMissingID)
}
