package dispatch

import (
	"time"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// ResolvedDispatchEntry is a vehicle record joined with its current
// reallocation target and computed classifications. It is the unit
// every downstream consumer works with and is recomputed whenever
// either snapshot changes.
type ResolvedDispatchEntry struct {
	models.VehicleRecord

	// ReallocatedTo is nil when the vehicle has no reallocation; an
	// empty non-nil value means the current entry has no target dealer.
	ReallocatedTo *string        `json:"reallocatedTo,omitempty"`
	DealerCheck   DealerCheck    `json:"dealerCheck"`
	Status        StatusCategory `json:"status"`
	StatusLabel   string         `json:"statusLabel"`
	FlagState     FlagState      `json:"flagState"`
	DaysInYard    int            `json:"daysInYard"`

	// WriteError is the last failed-write message attached to this
	// chassis, surfaced for display.
	WriteError string `json:"writeError,omitempty"`
}

// EffectiveDealer is the dealer the vehicle is currently destined for:
// the reallocation target when one exists, otherwise the scheduled
// dealer.
func (e ResolvedDispatchEntry) EffectiveDealer() string {
	if e.ReallocatedTo != nil && *e.ReallocatedTo != "" {
		return *e.ReallocatedTo
	}
	return e.ScheduledDealer
}

// ResolveEntry joins one vehicle record against the reallocation
// resolver. Derivations are total: malformed inputs degrade to the
// conservative classification instead of failing.
func ResolveEntry(record models.VehicleRecord, resolver *ReallocationResolver, now time.Time) ResolvedDispatchEntry {
	entry := ResolvedDispatchEntry{VehicleRecord: record}

	if target, ok := resolver.TargetFor(record.Chassis); ok {
		entry.ReallocatedTo = &target
	}
	entry.DealerCheck = ValidateDealer(record.SAPData, record.ScheduledDealer, entry.ReallocatedTo)
	entry.Status = ClassifyStatus(record.StatusCheck)
	entry.StatusLabel = StatusLabel(record.StatusCheck)
	entry.FlagState = CurrentFlagState(record)
	entry.DaysInYard = daysInYard(record.ReceivedAt, now)
	return entry
}

// daysInYard counts whole days since warehouse arrival; unknown
// arrival dates count as zero days.
func daysInYard(receivedAt *time.Time, now time.Time) int {
	if receivedAt == nil || receivedAt.After(now) {
		return 0
	}
	return int(now.Sub(*receivedAt) / (24 * time.Hour))
}
