package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// MemoryStore is a fully in-process Store. It backs tests and the
// standalone demo mode, and defines the reference semantics the
// Mongo-backed store mirrors.
type MemoryStore struct {
	mu           sync.RWMutex
	vehicles     map[string]models.VehicleRecord
	reallocation map[string]models.ReallocationEntry // keyed by escaped chassis+entry id
	schedule     map[string]models.ScheduleEntry

	hub *broadcaster
}

// NewMemoryStore returns an empty in-memory store. publisher may be
// nil.
func NewMemoryStore(publisher Publisher) *MemoryStore {
	return &MemoryStore{
		vehicles:     make(map[string]models.VehicleRecord),
		reallocation: make(map[string]models.ReallocationEntry),
		schedule:     make(map[string]models.ScheduleEntry),
		hub:          newBroadcaster(publisher),
	}
}

// FetchVehicles returns a copy of the vehicle collection.
func (s *MemoryStore) FetchVehicles(ctx context.Context) (map[string]models.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyVehicles(s.vehicles), nil
}

// FetchReallocations returns the full reallocation history.
func (s *MemoryStore) FetchReallocations(ctx context.Context) ([]models.ReallocationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyReallocations(s.reallocation), nil
}

// FetchSchedule returns the production schedule keyed by chassis.
func (s *MemoryStore) FetchSchedule(ctx context.Context) (map[string]models.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.ScheduleEntry, len(s.schedule))
	for k, v := range s.schedule {
		out[k] = v
	}
	return out, nil
}

// SubscribeVehicles registers a push subscription for the vehicle
// collection.
func (s *MemoryStore) SubscribeVehicles(ctx context.Context) (*VehicleSubscription, error) {
	return s.hub.subscribeVehicles()
}

// SubscribeReallocations registers a push subscription for the
// reallocation history.
func (s *MemoryStore) SubscribeReallocations(ctx context.Context) (*ReallocationSubscription, error) {
	return s.hub.subscribeReallocations()
}

// PatchVehicle shallow-merges a patch into one record and pushes the
// updated collection to subscribers.
func (s *MemoryStore) PatchVehicle(ctx context.Context, chassis string, patch models.Patch) error {
	key := EscapeKey(chassis)
	s.mu.Lock()
	record, ok := s.vehicles[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("patch vehicle %q: record not found", chassis)
	}
	s.vehicles[key] = record.Apply(patch)
	snapshot := copyVehicles(s.vehicles)
	s.mu.Unlock()

	s.hub.pushVehicles(snapshot)
	return nil
}

// PutVehicle creates or replaces a record and pushes the updated
// collection.
func (s *MemoryStore) PutVehicle(ctx context.Context, record models.VehicleRecord) error {
	if record.Chassis == "" {
		return fmt.Errorf("put vehicle: chassis required")
	}
	s.mu.Lock()
	s.vehicles[EscapeKey(record.Chassis)] = record
	snapshot := copyVehicles(s.vehicles)
	s.mu.Unlock()

	s.hub.pushVehicles(snapshot)
	return nil
}

// PutReallocation appends or replaces one history entry and pushes the
// updated history.
func (s *MemoryStore) PutReallocation(ctx context.Context, entry models.ReallocationEntry) error {
	if entry.Chassis == "" || entry.EntryID == "" {
		return fmt.Errorf("put reallocation: chassis and entry id required")
	}
	s.mu.Lock()
	s.reallocation[EscapeKey(entry.Chassis)+"/"+EscapeKey(entry.EntryID)] = entry
	entries := copyReallocations(s.reallocation)
	s.mu.Unlock()

	s.hub.pushReallocations(entries)
	return nil
}

// PutSchedule creates or replaces one schedule row.
func (s *MemoryStore) PutSchedule(ctx context.Context, entry models.ScheduleEntry) error {
	if entry.Chassis == "" {
		return fmt.Errorf("put schedule: chassis required")
	}
	s.mu.Lock()
	s.schedule[EscapeKey(entry.Chassis)] = entry
	s.mu.Unlock()
	return nil
}

// Close cancels every subscription.
func (s *MemoryStore) Close() {
	s.hub.close()
}

func copyVehicles(in map[string]models.VehicleRecord) map[string]models.VehicleRecord {
	out := make(map[string]models.VehicleRecord, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyReallocations(in map[string]models.ReallocationEntry) []models.ReallocationEntry {
	out := make([]models.ReallocationEntry, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	return out
}
