package dispatch

import (
	"sort"
	"time"
)

// entryDateLayout is the textual day/month/year form reallocation
// history dates arrive in.
const entryDateLayout = "02/01/2006"

// DatedEntry is the minimal shape date ranking needs: a primary date
// string in DD/MM/YYYY form and a fallback submit timestamp in
// RFC3339 form.
type DatedEntry struct {
	Date        string
	SubmittedAt string
}

// resolveEntryDate parses an entry's primary date, falling back to its
// submit timestamp. Unparseable or missing values resolve to the Unix
// epoch so they lose every comparison against a parseable date.
func resolveEntryDate(e DatedEntry) time.Time {
	if t, err := time.Parse(entryDateLayout, e.Date); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, e.SubmittedAt); err == nil {
		return t
	}
	return time.Unix(0, 0).UTC()
}

// LatestEntry returns the id of the entry whose resolved date is
// latest. When two entries resolve to the identical instant the entry
// whose id sorts first lexicographically wins; map iteration order is
// randomized, so ids are visited in sorted order to keep the result
// deterministic. Returns ok=false for an empty map.
func LatestEntry(entries map[string]DatedEntry) (string, bool) {
	if len(entries) == 0 {
		return "", false
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bestID := ids[0]
	bestDate := resolveEntryDate(entries[bestID])
	for _, id := range ids[1:] {
		if d := resolveEntryDate(entries[id]); d.After(bestDate) {
			bestID = id
			bestDate = d
		}
	}
	return bestID, true
}
