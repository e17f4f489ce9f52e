package store

import (
	"sync"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// Publisher mirrors vehicle snapshots to an out-of-band channel (the
// MQTT stream) in addition to the in-process subscriptions.
type Publisher interface {
	PublishVehicles(snapshot map[string]models.VehicleRecord)
}

// broadcaster fans full-collection snapshots out to subscriptions.
// Delivery is latest-wins: a subscriber that has not drained its
// channel sees only the most recent snapshot, never a backlog.
type broadcaster struct {
	mu          sync.Mutex
	closed      bool
	vehicleSubs map[*VehicleSubscription]struct{}
	reallocSubs map[*ReallocationSubscription]struct{}
	publisher   Publisher
}

func newBroadcaster(publisher Publisher) *broadcaster {
	return &broadcaster{
		vehicleSubs: make(map[*VehicleSubscription]struct{}),
		reallocSubs: make(map[*ReallocationSubscription]struct{}),
		publisher:   publisher,
	}
}

func (b *broadcaster) subscribeVehicles() (*VehicleSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &VehicleSubscription{updates: make(chan map[string]models.VehicleRecord, 1)}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.vehicleSubs[sub]; ok {
			delete(b.vehicleSubs, sub)
			close(sub.updates)
		}
	}
	b.vehicleSubs[sub] = struct{}{}
	return sub, nil
}

func (b *broadcaster) subscribeReallocations() (*ReallocationSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &ReallocationSubscription{updates: make(chan []models.ReallocationEntry, 1)}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.reallocSubs[sub]; ok {
			delete(b.reallocSubs, sub)
			close(sub.updates)
		}
	}
	b.reallocSubs[sub] = struct{}{}
	return sub, nil
}

func (b *broadcaster) pushVehicles(snapshot map[string]models.VehicleRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.vehicleSubs {
		replaceLatestVehicles(sub.updates, snapshot)
	}
	if b.publisher != nil {
		b.publisher.PublishVehicles(snapshot)
	}
}

func (b *broadcaster) pushReallocations(entries []models.ReallocationEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.reallocSubs {
		replaceLatestReallocations(sub.updates, entries)
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.vehicleSubs {
		delete(b.vehicleSubs, sub)
		close(sub.updates)
	}
	for sub := range b.reallocSubs {
		delete(b.reallocSubs, sub)
		close(sub.updates)
	}
}

func replaceLatestVehicles(ch chan map[string]models.VehicleRecord, snapshot map[string]models.VehicleRecord) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
		}
		// Channel full; drop the stale snapshot and retry.
		select {
		case <-ch:
		default:
		}
	}
}

func replaceLatestReallocations(ch chan []models.ReallocationEntry, entries []models.ReallocationEntry) {
	for {
		select {
		case ch <- entries:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
