package dispatch

import (
	"reflect"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// OverlayStore holds unconfirmed local edits keyed by chassis and lays
// them over the last authoritative snapshot, so an edit is visible
// immediately while its write is still in flight. It is the only
// mutable shared state in the core; all access goes through its
// methods.
type OverlayStore struct {
	mu      sync.RWMutex
	pending map[string]models.Patch
	errs    map[string]string
}

// NewOverlayStore returns an empty overlay.
func NewOverlayStore() *OverlayStore {
	return &OverlayStore{
		pending: make(map[string]models.Patch),
		errs:    make(map[string]string),
	}
}

// ApplyLocal merges a patch into the key's pending edit. A later call
// overwrites only the fields it names; other pending fields stay put.
// Applying also clears any stale write error for the key.
func (s *OverlayStore) ApplyLocal(key string, patch models.Patch) {
	if len(patch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.pending[key]
	if entry == nil {
		entry = make(models.Patch, len(patch))
		s.pending[key] = entry
	}
	for field, value := range patch {
		entry[field] = value
	}
	delete(s.errs, key)
}

// Reconcile walks every pending edit against a fresh authoritative
// snapshot and drops the ones the snapshot has caught up with: an
// entry is evicted when applying it to the snapshot record changes no
// field, so a nil (clearing) value compares against the field's
// cleared representation rather than against nil itself. Entries for
// keys missing from the snapshot are retained (still waiting).
// Idempotent for a given snapshot.
func (s *OverlayStore) Reconcile(snapshot map[string]models.VehicleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.pending {
		record, ok := snapshot[key]
		if !ok {
			continue
		}
		applied := record.Apply(entry)
		synced := true
		for field := range entry {
			if !fieldValueEqual(record.Field(field), applied.Field(field)) {
				synced = false
				break
			}
		}
		if synced {
			delete(s.pending, key)
			log.WithFields(log.Fields{"chassis": key}).Debug("pending edit confirmed by snapshot")
		}
	}
}

// CommitOrRevert settles the outcome of the external write for one
// patch. On success the overlay is left alone; the next Reconcile
// clears it. On failure exactly the fields this patch set are removed
// from the pending entry, so the effective values fall back to the
// confirmed snapshot plus any other still-pending edits, and the error
// message is attached to the key.
func (s *OverlayStore) CommitOrRevert(key string, patch models.Patch, writeErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if writeErr == nil {
		delete(s.errs, key)
		return
	}

	entry := s.pending[key]
	for field := range patch {
		delete(entry, field)
	}
	if len(entry) == 0 {
		delete(s.pending, key)
	}
	s.errs[key] = writeErr.Error()
	log.WithFields(log.Fields{"chassis": key, "error": writeErr}).Warn("patch write failed, local edit reverted")
}

// Effective returns the record with the key's pending edit applied
// over the given snapshot value.
func (s *OverlayStore) Effective(key string, record models.VehicleRecord) models.VehicleRecord {
	s.mu.RLock()
	entry := s.pending[key]
	s.mu.RUnlock()
	if len(entry) == 0 {
		return record
	}
	return record.Apply(entry)
}

// Pending returns a copy of the key's pending patch, if any.
func (s *OverlayStore) Pending(key string) (models.Patch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.pending[key]
	if !ok {
		return nil, false
	}
	clone := make(models.Patch, len(entry))
	for field, value := range entry {
		clone[field] = value
	}
	return clone, true
}

// Error returns the last write error attached to the key, if any.
func (s *OverlayStore) Error(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.errs[key]
	return msg, ok
}

// ClearError removes the key's write error, typically after the user
// has acknowledged it.
func (s *OverlayStore) ClearError(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs, key)
}

// PendingCount reports how many keys currently hold unconfirmed edits.
func (s *OverlayStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// fieldValueEqual compares a snapshot field value with a pending patch
// value. Times compare by instant regardless of pointer-ness or zone;
// everything else falls back to deep equality.
func fieldValueEqual(snapshot, pending any) bool {
	st, sok := timeValue(snapshot)
	pt, pok := timeValue(pending)
	if sok || pok {
		return sok == pok && st.Equal(pt)
	}
	if sf, ok := snapshot.(models.FlagField); ok {
		pf, pok := pending.(models.FlagField)
		return pok && flagFieldEqual(sf, pf)
	}
	if isNilValue(snapshot) || isNilValue(pending) {
		return isNilValue(snapshot) && isNilValue(pending)
	}
	return reflect.DeepEqual(snapshot, pending)
}

// flagFieldEqual compares flags by value, with timestamps compared by
// instant so a zone change in storage does not block reconciliation.
func flagFieldEqual(a, b models.FlagField) bool {
	if a.Active != b.Active {
		return false
	}
	if (a.At == nil) != (b.At == nil) || (a.At != nil && !a.At.Equal(*b.At)) {
		return false
	}
	if (a.By == nil) != (b.By == nil) || (a.By != nil && *a.By != *b.By) {
		return false
	}
	return true
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	default:
		return time.Time{}, false
	}
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
