package storage

import (
	"context"
	"sync"

	"github.com/fossawork/fossawork/internal/calculator"
)

// Store persists scraped portal data and manual quantity overrides between
// runs. Saving work orders replaces the previous scrape; saving dispensers
// replaces the previous scrape for that store only.
type Store interface {
	SaveWorkOrders(ctx context.Context, orders []calculator.WorkOrder) error
	WorkOrders(ctx context.Context) ([]calculator.WorkOrder, error)
	SaveDispensers(ctx context.Context, storeNumber string, dispensers []calculator.Dispenser) error
	Dispensers(ctx context.Context) ([]calculator.Dispenser, error)
	SetOverride(ctx context.Context, jobID, partNumber string, quantity int) error
	Overrides(ctx context.Context) (calculator.Overrides, error)
	Close() error
}

// MemoryStore keeps everything in-memory and guards access with a RWMutex.
// It backs tests and the pure `calculate` command; the daemon uses SQLite.
type MemoryStore struct {
	mu         sync.RWMutex
	workOrders []calculator.WorkOrder
	dispensers map[string][]calculator.Dispenser
	overrides  map[string]int
}

// NewMemoryStore initialises an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dispensers: make(map[string][]calculator.Dispenser),
		overrides:  make(map[string]int),
	}
}

// SaveWorkOrders replaces the stored work order set.
func (s *MemoryStore) SaveWorkOrders(ctx context.Context, orders []calculator.WorkOrder) error {
	_ = ctx
	s.mu.Lock()
	s.workOrders = cloneWorkOrders(orders)
	s.mu.Unlock()
	return nil
}

// WorkOrders returns a defensive copy of the stored work orders.
func (s *MemoryStore) WorkOrders(ctx context.Context) ([]calculator.WorkOrder, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWorkOrders(s.workOrders), nil
}

// SaveDispensers replaces the dispensers recorded for one store.
func (s *MemoryStore) SaveDispensers(ctx context.Context, storeNumber string, dispensers []calculator.Dispenser) error {
	_ = ctx
	s.mu.Lock()
	s.dispensers[storeNumber] = cloneDispensers(dispensers)
	s.mu.Unlock()
	return nil
}

// Dispensers returns all stored dispensers across stores.
func (s *MemoryStore) Dispensers(ctx context.Context) ([]calculator.Dispenser, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []calculator.Dispenser
	for _, group := range s.dispensers {
		out = append(out, cloneDispensers(group)...)
	}
	return out, nil
}

// SetOverride records a manual quantity correction for a job/part pair.
func (s *MemoryStore) SetOverride(ctx context.Context, jobID, partNumber string, quantity int) error {
	_ = ctx
	s.mu.Lock()
	s.overrides[jobID+"-"+partNumber] = quantity
	s.mu.Unlock()
	return nil
}

// Overrides returns a copy of all recorded overrides keyed
// "{jobId}-{partNumber}".
func (s *MemoryStore) Overrides(ctx context.Context) (calculator.Overrides, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(calculator.Overrides, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneWorkOrders(src []calculator.WorkOrder) []calculator.WorkOrder {
	if len(src) == 0 {
		return nil
	}
	out := make([]calculator.WorkOrder, len(src))
	copy(out, src)
	return out
}

func cloneDispensers(src []calculator.Dispenser) []calculator.Dispenser {
	if len(src) == 0 {
		return nil
	}
	out := make([]calculator.Dispenser, len(src))
	for i, d := range src {
		grades := make([]calculator.FuelGrade, len(d.FuelGrades))
		copy(grades, d.FuelGrades)
		d.FuelGrades = grades
		out[i] = d
	}
	return out
}
