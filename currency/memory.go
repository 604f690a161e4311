package currency

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRegistry keeps currencies in a map. Used by tests and single-process tools.
type MemoryRegistry struct {
	mu         sync.RWMutex
	currencies map[string]Currency
}

func NewMemoryRegistry(currencies ...Currency) *MemoryRegistry {
	m := &MemoryRegistry{currencies: make(map[string]Currency, len(currencies))}
	for _, c := range currencies {
		m.currencies[c.Code] = c
	}
	return m
}

func (m *MemoryRegistry) Get(ctx context.Context, code string) (*Currency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.currencies[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryRegistry) List(ctx context.Context) ([]Currency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	currencies := make([]Currency, 0, len(m.currencies))
	for _, c := range m.currencies {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i].Code < currencies[j].Code })
	return currencies, nil
}

func (m *MemoryRegistry) Upsert(ctx context.Context, c Currency) error {
	if err := c.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.currencies[c.Code]; ok {
		c.CreatedAt = existing.CreatedAt
		c.CreatedBy = existing.CreatedBy
	}
	m.currencies[c.Code] = c
	return nil
}

func (m *MemoryRegistry) UpdateRate(ctx context.Context, code string, rate decimal.Decimal, updatedBy string) error {
	if !rate.IsPositive() {
		return ErrInvalidRate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.currencies[NormalizeCode(code)]
	if !ok {
		return ErrNotFound
	}
	c.Rate = rate
	c.UpdatedAt = time.Now().UTC()
	c.UpdatedBy = updatedBy
	m.currencies[c.Code] = c
	return nil
}

var _ Registry = (*MemoryRegistry)(nil)
