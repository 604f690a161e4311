package ledger

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type memoryState struct {
	events       map[uuid.UUID]Event
	currencies   map[uuid.UUID]map[string]EventCurrency
	participants map[uuid.UUID][]Participant
	expenses     map[uuid.UUID]Expense
	settlements  map[uuid.UUID]Settlement
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		events:       maps.Clone(s.events),
		currencies:   make(map[uuid.UUID]map[string]EventCurrency, len(s.currencies)),
		participants: make(map[uuid.UUID][]Participant, len(s.participants)),
		expenses:     make(map[uuid.UUID]Expense, len(s.expenses)),
		settlements:  maps.Clone(s.settlements),
	}
	for id, cs := range s.currencies {
		c.currencies[id] = maps.Clone(cs)
	}
	for id, ps := range s.participants {
		c.participants[id] = slices.Clone(ps)
	}
	for id, e := range s.expenses {
		e.AffectedIDs = slices.Clone(e.AffectedIDs)
		c.expenses[id] = e
	}
	return c
}

// MemoryStore keeps the ledger in maps. Transactions are serialized and work
// on a copy that replaces the state on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		events:       make(map[uuid.UUID]Event),
		currencies:   make(map[uuid.UUID]map[string]EventCurrency),
		participants: make(map[uuid.UUID][]Participant),
		expenses:     make(map[uuid.UUID]Expense),
		settlements:  make(map[uuid.UUID]Settlement),
	}}
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) LockEvent(ctx context.Context, eventID uuid.UUID) error {
	if _, ok := t.state.events[eventID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) GetEvent(ctx context.Context, eventID uuid.UUID) (Event, error) {
	e, ok := t.state.events[eventID]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (t *memoryTx) ListEventsForUser(ctx context.Context, userID uuid.UUID) ([]Event, error) {
	events := make([]Event, 0)
	for _, e := range t.state.events {
		member := e.AdminID == userID || slices.ContainsFunc(t.state.participants[e.ID], func(p Participant) bool {
			return p.UserID == userID
		})
		if member {
			events = append(events, e)
		}
	}
	slices.SortFunc(events, func(a, b Event) int {
		return b.Date.Compare(a.Date)
	})
	return events, nil
}

func (t *memoryTx) InsertEvent(ctx context.Context, event Event) error {
	t.state.events[event.ID] = event
	t.state.currencies[event.ID] = make(map[string]EventCurrency)
	return nil
}

func (t *memoryTx) UpdateEvent(ctx context.Context, event Event) error {
	if _, ok := t.state.events[event.ID]; !ok {
		return ErrNotFound
	}
	t.state.events[event.ID] = event
	return nil
}

func (t *memoryTx) ListCurrencies(ctx context.Context, eventID uuid.UUID) ([]EventCurrency, error) {
	out := slices.Collect(maps.Values(t.state.currencies[eventID]))
	slices.SortFunc(out, func(a, b EventCurrency) int {
		return cmp.Compare(a.Code, b.Code)
	})
	return out, nil
}

func (t *memoryTx) InsertCurrency(ctx context.Context, c EventCurrency) error {
	if t.state.currencies[c.EventID] == nil {
		t.state.currencies[c.EventID] = make(map[string]EventCurrency)
	}
	t.state.currencies[c.EventID][c.Code] = c
	return nil
}

func (t *memoryTx) DeleteCurrency(ctx context.Context, eventID uuid.UUID, code string) error {
	if _, ok := t.state.currencies[eventID][code]; !ok {
		return ErrNotFound
	}
	delete(t.state.currencies[eventID], code)
	return nil
}

func (t *memoryTx) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]Participant, error) {
	return slices.Clone(t.state.participants[eventID]), nil
}

func (t *memoryTx) InsertParticipant(ctx context.Context, p Participant) error {
	t.state.participants[p.EventID] = append(t.state.participants[p.EventID], p)
	return nil
}

func (t *memoryTx) UpdateParticipant(ctx context.Context, p Participant) error {
	ps := t.state.participants[p.EventID]
	i := slices.IndexFunc(ps, func(x Participant) bool { return x.UserID == p.UserID })
	if i < 0 {
		return ErrNotFound
	}
	ps[i] = p
	return nil
}

func (t *memoryTx) DeleteParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	ps := t.state.participants[eventID]
	i := slices.IndexFunc(ps, func(x Participant) bool { return x.UserID == userID })
	if i < 0 {
		return ErrNotFound
	}
	t.state.participants[eventID] = slices.Delete(ps, i, i+1)
	return nil
}

func (t *memoryTx) ListExpenses(ctx context.Context, eventID uuid.UUID) ([]Expense, error) {
	out := make([]Expense, 0)
	for _, e := range t.state.expenses {
		if e.EventID == eventID {
			e.AffectedIDs = slices.Clone(e.AffectedIDs)
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Expense) int {
		return cmp.Or(a.Date.Compare(b.Date), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (t *memoryTx) GetExpense(ctx context.Context, expenseID uuid.UUID) (Expense, error) {
	e, ok := t.state.expenses[expenseID]
	if !ok {
		return Expense{}, ErrNotFound
	}
	e.AffectedIDs = slices.Clone(e.AffectedIDs)
	return e, nil
}

func (t *memoryTx) InsertExpense(ctx context.Context, e Expense) error {
	e.AffectedIDs = slices.Clone(e.AffectedIDs)
	t.state.expenses[e.ID] = e
	return nil
}

func (t *memoryTx) UpdateExpense(ctx context.Context, e Expense) error {
	if _, ok := t.state.expenses[e.ID]; !ok {
		return ErrNotFound
	}
	return t.InsertExpense(ctx, e)
}

func (t *memoryTx) DeleteExpense(ctx context.Context, expenseID uuid.UUID) error {
	if _, ok := t.state.expenses[expenseID]; !ok {
		return ErrNotFound
	}
	delete(t.state.expenses, expenseID)
	return nil
}

func (t *memoryTx) ListSettlements(ctx context.Context, eventID uuid.UUID) ([]Settlement, error) {
	out := make([]Settlement, 0)
	for _, s := range t.state.settlements {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Settlement) int {
		return cmp.Or(a.Date.Compare(b.Date), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (t *memoryTx) GetSettlement(ctx context.Context, settlementID uuid.UUID) (Settlement, error) {
	s, ok := t.state.settlements[settlementID]
	if !ok {
		return Settlement{}, ErrNotFound
	}
	return s, nil
}

func (t *memoryTx) InsertSettlement(ctx context.Context, s Settlement) error {
	t.state.settlements[s.ID] = s
	return nil
}

func (t *memoryTx) UpdateSettlement(ctx context.Context, s Settlement) error {
	if _, ok := t.state.settlements[s.ID]; !ok {
		return ErrNotFound
	}
	t.state.settlements[s.ID] = s
	return nil
}

func (t *memoryTx) DeleteSettlement(ctx context.Context, settlementID uuid.UUID) error {
	if _, ok := t.state.settlements[settlementID]; !ok {
		return ErrNotFound
	}
	delete(t.state.settlements, settlementID)
	return nil
}

func (t *memoryTx) DeleteDraftSettlements(ctx context.Context, eventID uuid.UUID) error {
	maps.DeleteFunc(t.state.settlements, func(_ uuid.UUID, s Settlement) bool {
		return s.EventID == eventID && s.Draft
	})
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memoryTx)(nil)
)
