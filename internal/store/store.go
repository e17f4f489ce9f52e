// Package store is the real-time store boundary: one-shot fetches,
// push subscriptions delivering the full collection on every change,
// and shallow-merge partial patches keyed by record identity.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// ErrClosed is returned when operating on a store that has been shut
// down.
var ErrClosed = errors.New("store closed")

// Store is the collaborator contract the reconciliation core depends
// on. Writes are eventually consistent: a patch that succeeds here may
// still be followed by a push snapshot that has not caught up yet.
type Store interface {
	FetchVehicles(ctx context.Context) (map[string]models.VehicleRecord, error)
	FetchReallocations(ctx context.Context) ([]models.ReallocationEntry, error)
	FetchSchedule(ctx context.Context) (map[string]models.ScheduleEntry, error)

	// SubscribeVehicles and SubscribeReallocations register the single
	// active handler for their collection; cancelling the returned
	// subscription releases it.
	SubscribeVehicles(ctx context.Context) (*VehicleSubscription, error)
	SubscribeReallocations(ctx context.Context) (*ReallocationSubscription, error)

	// PatchVehicle shallow-merges a partial patch into one record:
	// absent fields are untouched, nil-valued fields are cleared.
	PatchVehicle(ctx context.Context, chassis string, patch models.Patch) error

	PutVehicle(ctx context.Context, record models.VehicleRecord) error
	PutReallocation(ctx context.Context, entry models.ReallocationEntry) error
	PutSchedule(ctx context.Context, entry models.ScheduleEntry) error
}

// VehicleSubscription delivers the full vehicle collection on every
// change. There are no deltas; consumers diff against the whole
// snapshot each time.
type VehicleSubscription struct {
	updates chan map[string]models.VehicleRecord
	cancel  func()
}

// Updates is the snapshot channel. It is closed after Cancel.
func (s *VehicleSubscription) Updates() <-chan map[string]models.VehicleRecord {
	return s.updates
}

// Cancel releases the subscription. Safe to call more than once.
func (s *VehicleSubscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// ReallocationSubscription delivers the full reallocation history on
// every change.
type ReallocationSubscription struct {
	updates chan []models.ReallocationEntry
	cancel  func()
}

// Updates is the snapshot channel. It is closed after Cancel.
func (s *ReallocationSubscription) Updates() <-chan []models.ReallocationEntry {
	return s.updates
}

// Cancel releases the subscription. Safe to call more than once.
func (s *ReallocationSubscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// storePathMeta are the characters that are structurally significant
// to the store's addressing scheme and may not appear in a key path
// segment.
const storePathMeta = ".#$[]/"

// EscapeKey replaces structurally significant characters in a record
// key with underscores so the key is usable as a store path segment.
func EscapeKey(key string) string {
	if !strings.ContainsAny(key, storePathMeta) {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if strings.ContainsRune(storePathMeta, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
