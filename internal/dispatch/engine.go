package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
	"github.com/zyansaber/dispatching-3-sub000/internal/store"
)

var (
	// ErrRecordNotFound is returned for operations on an unknown
	// chassis.
	ErrRecordNotFound = errors.New("record not found")
	// ErrFieldNotEditable rejects patches to fields that are owned by
	// the upstream feed or the flag machine.
	ErrFieldNotEditable = errors.New("field not editable")
	// ErrPickupInPast rejects an estimated pickup time before today.
	ErrPickupInPast = errors.New("estimated pickup must be today or later")
)

// editableFields are the fields users may patch directly. Flag fields
// go through the flag machine; everything else belongs to the feed.
var editableFields = map[string]bool{
	models.FieldScheduledDealer:   true,
	models.FieldMatchedPO:         true,
	models.FieldTransportCompany:  true,
	models.FieldEstimatedPickupAt: true,
	models.FieldComment:           true,
}

// writeTimeout bounds the fire-and-forget store write. The write keeps
// running even if the caller is gone; only its result is discarded.
const writeTimeout = 15 * time.Second

// Engine owns the reconciliation loop: it keeps the last authoritative
// snapshots, derives resolved entries, overlays pending edits, and
// runs the optimistic write path. All methods are safe for concurrent
// use.
type Engine struct {
	st      store.Store
	overlay *OverlayStore
	machine *FlagMachine
	now     func() time.Time

	mu       sync.RWMutex
	vehicles map[string]models.VehicleRecord
	resolver *ReallocationResolver

	onChange func()
}

// NewEngine wires an engine over a store. The machine stamps flag
// transitions with the application actor.
func NewEngine(st store.Store, machine *FlagMachine) *Engine {
	if machine == nil {
		machine = NewFlagMachine("")
	}
	return &Engine{
		st:       st,
		overlay:  NewOverlayStore(),
		machine:  machine,
		now:      time.Now,
		vehicles: make(map[string]models.VehicleRecord),
		resolver: &ReallocationResolver{},
	}
}

// SetOnChange registers the single change handler, invoked after every
// snapshot update or settled write. Must be called before Start.
func (e *Engine) SetOnChange(fn func()) {
	e.onChange = fn
}

// Start performs the initial fetches, subscribes to both collections
// and consumes their push streams until ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	vehicles, err := e.st.FetchVehicles(ctx)
	if err != nil {
		return fmt.Errorf("initial vehicle fetch: %w", err)
	}
	reallocations, err := e.st.FetchReallocations(ctx)
	if err != nil {
		return fmt.Errorf("initial reallocation fetch: %w", err)
	}
	e.applyVehicleSnapshot(vehicles)
	e.applyReallocationSnapshot(ctx, reallocations)

	vehicleSub, err := e.st.SubscribeVehicles(ctx)
	if err != nil {
		return fmt.Errorf("subscribe vehicles: %w", err)
	}
	reallocSub, err := e.st.SubscribeReallocations(ctx)
	if err != nil {
		vehicleSub.Cancel()
		return fmt.Errorf("subscribe reallocations: %w", err)
	}

	go e.run(ctx, vehicleSub, reallocSub)
	return nil
}

// run is the subscription loop. One bad snapshot must never stop it;
// derivations are total, so only channel closure or ctx ends the loop.
func (e *Engine) run(ctx context.Context, vehicleSub *store.VehicleSubscription, reallocSub *store.ReallocationSubscription) {
	defer vehicleSub.Cancel()
	defer reallocSub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-vehicleSub.Updates():
			if !ok {
				return
			}
			e.applyVehicleSnapshot(snapshot)
			e.notify()
		case entries, ok := <-reallocSub.Updates():
			if !ok {
				return
			}
			e.applyReallocationSnapshot(ctx, entries)
			e.notify()
		}
	}
}

func (e *Engine) applyVehicleSnapshot(snapshot map[string]models.VehicleRecord) {
	e.overlay.Reconcile(snapshot)
	e.mu.Lock()
	e.vehicles = snapshot
	e.mu.Unlock()
	log.WithFields(log.Fields{"vehicles": len(snapshot), "pending": e.overlay.PendingCount()}).Debug("vehicle snapshot applied")
}

// applyReallocationSnapshot rebuilds the resolver against the current
// production schedule. A schedule fetch failure keeps the previous
// resolver rather than dropping every reallocation.
func (e *Engine) applyReallocationSnapshot(ctx context.Context, entries []models.ReallocationEntry) {
	schedule, err := e.st.FetchSchedule(ctx)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("schedule fetch failed, keeping previous reallocation state")
		return
	}
	status := make(map[string]string, len(schedule))
	for _, s := range schedule {
		status[models.NormalizeChassis(s.Chassis)] = s.Status
	}
	resolver := ResolveReallocations(entries, status)

	e.mu.Lock()
	e.resolver = resolver
	e.mu.Unlock()
	log.WithFields(log.Fields{"entries": len(entries), "resolved": resolver.Len()}).Debug("reallocation snapshot applied")
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

// Entries returns the resolved, overlaid record set ordered by
// chassis.
func (e *Engine) Entries() []ResolvedDispatchEntry {
	e.mu.RLock()
	vehicles := e.vehicles
	resolver := e.resolver
	e.mu.RUnlock()

	now := e.now()
	entries := make([]ResolvedDispatchEntry, 0, len(vehicles))
	for key, record := range vehicles {
		entry := ResolveEntry(e.overlay.Effective(key, record), resolver, now)
		if msg, ok := e.overlay.Error(key); ok {
			entry.WriteError = msg
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Chassis < entries[j].Chassis })
	return entries
}

// Entry returns one resolved record.
func (e *Engine) Entry(chassis string) (ResolvedDispatchEntry, bool) {
	key := store.EscapeKey(chassis)
	e.mu.RLock()
	record, ok := e.vehicles[key]
	resolver := e.resolver
	e.mu.RUnlock()
	if !ok {
		return ResolvedDispatchEntry{}, false
	}
	entry := ResolveEntry(e.overlay.Effective(key, record), resolver, e.now())
	if msg, errOK := e.overlay.Error(key); errOK {
		entry.WriteError = msg
	}
	return entry, true
}

// Stats aggregates the current record set.
func (e *Engine) Stats() Stats {
	return Aggregate(e.Entries())
}

// Query applies the filter/sort pipeline to the current record set.
func (e *Engine) Query(q Query) []ResolvedDispatchEntry {
	return ApplyQuery(e.Entries(), q)
}

// ToggleFlag validates and issues a flag transition for one record.
// Validation failures return synchronously with nothing written; a
// valid transition is applied to the overlay immediately and written
// to the store in the background, reverting on failure.
func (e *Engine) ToggleFlag(chassis string, target FlagState, comment string) error {
	key := store.EscapeKey(chassis)
	e.mu.RLock()
	record, ok := e.vehicles[key]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, chassis)
	}

	patch, err := e.machine.Toggle(e.overlay.Effective(key, record), target, comment)
	if err != nil {
		return err
	}
	e.issue(key, patch)
	return nil
}

// UpdateField validates and issues a single-field edit. Passing a nil
// value clears the field.
func (e *Engine) UpdateField(chassis, field string, value any) error {
	if !editableFields[field] {
		return fmt.Errorf("%w: %q", ErrFieldNotEditable, field)
	}
	key := store.EscapeKey(chassis)
	e.mu.RLock()
	_, ok := e.vehicles[key]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, chassis)
	}

	if field == models.FieldEstimatedPickupAt && value != nil {
		pickup, err := parsePickup(value)
		if err != nil {
			return err
		}
		// Midnight in the server's zone, not a UTC truncation, so an
		// early-morning pickup on the local date is still "today".
		now := e.now()
		year, month, day := now.Date()
		today := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		if pickup.Before(today) {
			return ErrPickupInPast
		}
		value = &pickup
	}

	e.issue(key, models.Patch{field: value})
	return nil
}

// ClearWriteError drops the failed-write message for one record.
func (e *Engine) ClearWriteError(chassis string) {
	e.overlay.ClearError(store.EscapeKey(chassis))
}

// issue runs the optimistic write path: overlay first, then the store
// write in the background. The caller never blocks on the network.
func (e *Engine) issue(key string, patch models.Patch) {
	e.overlay.ApplyLocal(key, patch)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		err := e.st.PatchVehicle(ctx, key, patch)
		e.overlay.CommitOrRevert(key, patch, err)
		e.notify()
	}()
}

func parsePickup(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("parse estimated pickup: nil")
		}
		return *v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse estimated pickup: %w", err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("parse estimated pickup: unsupported type %T", value)
	}
}
