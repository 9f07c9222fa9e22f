// Package ledger keeps the in-memory history of submitted transactions.
//
// Records are appended at submission time and mutated in place once the
// remote ledger confirms or rejects them. Only the orchestrator that owns the
// running operation writes; readers take snapshots.
package ledger

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// FailedHash is stored in Hash when a transaction never reached the node.
const FailedHash = "failed"

// Type classifies a record.
type Type string

const (
	TypeDirect   Type = "direct"
	TypeContract Type = "contract"
)

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Transaction is one entry of the history.
type Transaction struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Type      Type   `json:"type"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
	GasUsed   string `json:"gasUsed,omitempty"`
	GasPrice  string `json:"gasPrice,omitempty"`
	Data      string `json:"data,omitempty"`
	BatchID   string `json:"batchId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Timestamp renders t the way records store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ID identifies a record for its whole lifetime. IDs are never reused, not
// even after Clear.
type ID uint64

// Event is delivered to subscribers on every append, update and clear.
type Event struct {
	ID     ID
	Record Transaction
	Update bool
	// Cleared is set when the history was dropped; ID and Record are zero.
	Cleared bool
}

type entry struct {
	id ID
	tx Transaction
}

// Ledger is an append-only list of transaction records.
type Ledger struct {
	mu       sync.RWMutex
	records  []*entry
	byID     map[ID]*entry
	lastID   ID
	watchers []func(Event)
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{byID: make(map[ID]*entry)}
}

// Append stores tx and returns its ID.
func (l *Ledger) Append(tx Transaction) ID {
	l.mu.Lock()
	l.lastID++
	e := &entry{id: l.lastID, tx: tx}
	l.records = append(l.records, e)
	l.byID[e.id] = e
	watchers := l.watchers
	l.mu.Unlock()

	notify(watchers, Event{ID: e.id, Record: tx})
	return e.id
}

// Update applies fn to the record id in place. It reports false when the
// record is no longer held, e.g. after Clear.
func (l *Ledger) Update(id ID, fn func(tx *Transaction)) bool {
	l.mu.Lock()
	e, ok := l.byID[id]
	if !ok {
		l.mu.Unlock()
		return false
	}
	fn(&e.tx)
	rec := e.tx
	watchers := l.watchers
	l.mu.Unlock()

	notify(watchers, Event{ID: id, Record: rec, Update: true})
	return true
}

// Get returns a copy of the record id.
func (l *Ledger) Get(id ID) (Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.byID[id]
	if !ok {
		return Transaction{}, false
	}
	return e.tx, true
}

// Last returns a copy of the most recent record.
func (l *Ledger) Last() (Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return Transaction{}, false
	}
	return l.records[len(l.records)-1].tx, true
}

// List returns a snapshot of every record in append order.
func (l *Ledger) List() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.records))
	for i, e := range l.records {
		out[i] = e.tx
	}
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Clear drops every record. Pending records are forgotten; later updates to
// them report false.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.records = nil
	l.byID = make(map[ID]*entry)
	watchers := l.watchers
	l.mu.Unlock()

	notify(watchers, Event{Cleared: true})
}

// Subscribe registers fn for every subsequent append, update and clear. fn
// runs on the writer's goroutine and must not call back into the ledger's
// writers.
func (l *Ledger) Subscribe(fn func(Event)) {
	l.mu.Lock()
	l.watchers = append(l.watchers, fn)
	l.mu.Unlock()
}

// Counts returns the number of records per status.
func (l *Ledger) Counts() map[Status]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[Status]int, 3)
	for _, e := range l.records {
		out[e.tx.Status]++
	}
	return out
}

// WriteJSON writes the snapshot as an indented JSON array.
func (l *Ledger) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l.List())
}

func notify(watchers []func(Event), ev Event) {
	for _, fn := range watchers {
		fn(ev)
	}
}
