package dispatch

import (
	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// ReallocationResolver maps each chassis to its current reallocation
// target. A chassis with no mapping has no reallocation at all.
type ReallocationResolver struct {
	targets map[string]string
}

// ResolveReallocations collapses the reallocation history to one
// current target per chassis. The latest dated entry wins; a chassis
// whose production-schedule status is "Finished" is excluded entirely,
// regardless of entry recency. Schedule statuses are keyed by
// normalized chassis.
func ResolveReallocations(entries []models.ReallocationEntry, scheduleStatus map[string]string) *ReallocationResolver {
	byChassis := make(map[string]map[string]DatedEntry)
	targets := make(map[string]map[string]string)
	for _, e := range entries {
		chassis := models.NormalizeChassis(e.Chassis)
		if chassis == "" || e.EntryID == "" {
			continue
		}
		if byChassis[chassis] == nil {
			byChassis[chassis] = make(map[string]DatedEntry)
			targets[chassis] = make(map[string]string)
		}
		byChassis[chassis][e.EntryID] = DatedEntry{Date: e.Date, SubmittedAt: e.SubmittedAt}
		targets[chassis][e.EntryID] = e.ReallocatedTo
	}

	resolved := make(map[string]string, len(byChassis))
	for chassis, dated := range byChassis {
		if scheduleStatus[chassis] == models.ScheduleStatusFinished {
			log.WithFields(log.Fields{"chassis": chassis}).Debug("reallocation excluded: schedule status finished")
			continue
		}
		id, ok := LatestEntry(dated)
		if !ok {
			continue
		}
		resolved[chassis] = targets[chassis][id]
	}
	return &ReallocationResolver{targets: resolved}
}

// TargetFor returns the current reallocation target for a chassis.
// ok=false means the vehicle has no reallocation; an empty string with
// ok=true means the current entry carries no target dealer.
func (r *ReallocationResolver) TargetFor(chassis string) (string, bool) {
	if r == nil {
		return "", false
	}
	target, ok := r.targets[models.NormalizeChassis(chassis)]
	return target, ok
}

// Len reports how many chassis currently have a resolved reallocation.
func (r *ReallocationResolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.targets)
}
