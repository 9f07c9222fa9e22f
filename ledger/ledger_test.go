package ledger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendUpdate(t *testing.T) {
	l := New()

	var events []Event
	l.Subscribe(func(ev Event) { events = append(events, ev) })

	id := l.Append(Transaction{Hash: "0xabc", Status: StatusPending, Type: TypeDirect})
	assert.Equal(t, ID(1), id)
	assert.Equal(t, 1, l.Len())

	ok := l.Update(id, func(tx *Transaction) {
		tx.Status = StatusSuccess
		tx.GasUsed = "21000"
	})
	require.True(t, ok)

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "21000", got.GasUsed)

	require.Len(t, events, 2)
	assert.False(t, events[0].Update)
	assert.Equal(t, StatusPending, events[0].Record.Status)
	assert.True(t, events[1].Update)
	assert.Equal(t, StatusSuccess, events[1].Record.Status)

	assert.Equal(t, id, events[1].ID)

	assert.False(t, l.Update(5, func(*Transaction) {}))
	_, ok = l.Get(0)
	assert.False(t, ok)
}

func TestListIsSnapshot(t *testing.T) {
	l := New()
	id := l.Append(Transaction{Hash: "0x1", Status: StatusPending})

	snap := l.List()
	snap[0].Status = StatusFailed

	got, _ := l.Get(id)
	assert.Equal(t, StatusPending, got.Status)
}

func TestCountsAndClear(t *testing.T) {
	l := New()
	l.Append(Transaction{Status: StatusSuccess})
	l.Append(Transaction{Status: StatusFailed, Hash: FailedHash})
	l.Append(Transaction{Status: StatusSuccess})

	counts := l.Counts()
	assert.Equal(t, 2, counts[StatusSuccess])
	assert.Equal(t, 1, counts[StatusFailed])

	l.Clear()
	assert.Zero(t, l.Len())
}

func TestClearKeepsIDsStable(t *testing.T) {
	l := New()

	var events []Event
	l.Subscribe(func(ev Event) { events = append(events, ev) })

	pending := l.Append(Transaction{Hash: "0x1", Status: StatusPending})
	l.Clear()
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].Cleared)

	next := l.Append(Transaction{Hash: "0x2", Status: StatusPending})
	assert.NotEqual(t, pending, next)

	// an update for a record dropped by Clear must not land on a newer one
	assert.False(t, l.Update(pending, func(tx *Transaction) { tx.Status = StatusSuccess }))
	got, ok := l.Get(next)
	require.True(t, ok)
	assert.Equal(t, StatusPending, got.Status)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, "0x2", last.Hash)
}

func TestWriteJSON(t *testing.T) {
	l := New()
	l.Append(Transaction{
		Hash:      "0xabc",
		From:      "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Amount:    "0.01",
		Type:      TypeDirect,
		Status:    StatusPending,
		Timestamp: Timestamp(time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)),
	})

	var buf bytes.Buffer
	require.NoError(t, l.WriteJSON(&buf))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "2024-01-15T10:30:45.000Z", out[0]["timestamp"])
	assert.Equal(t, "direct", out[0]["type"])
	assert.Equal(t, "", out[0]["to"])
	assert.NotContains(t, out[0], "gasUsed")
}
