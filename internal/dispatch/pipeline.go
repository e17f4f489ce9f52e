package dispatch

import (
	"sort"
	"strings"
)

// Category selects one dashboard slice of the record set, matching the
// stats counters.
type Category string

const (
	CategoryAll               Category = "all"
	CategoryNormal            Category = "normal"
	CategoryOnHold            Category = "onHold"
	CategoryTemporaryLeaving  Category = "temporaryLeaving"
	CategoryInvalidStock      Category = "invalidStock"
	CategoryServiceTicket     Category = "serviceTicket"
	CategoryStatusOK          Category = "statusOK"
	CategoryWrongStatus       Category = "wrongStatus"
	CategoryNoReference       Category = "noReference"
	CategorySnowyStock        Category = "snowyStock"
	CategoryBooked            Category = "booked"
	CategoryWaitingForBooking Category = "waitingForBooking"
	CategoryCanBeDispatched   Category = "canBeDispatched"
)

// DayRange bounds the days-in-yard filter: inclusive minimum, and an
// inclusive maximum that is unbounded when nil.
type DayRange struct {
	Min int
	Max *int
}

// SortDaysInYard is the one numerically-compared sort column.
const SortDaysInYard = "daysInYard"

// Query is one pass of the presentation pipeline. A non-empty Search
// overrides Category entirely.
type Query struct {
	Days     *DayRange
	Category Category
	Search   string
	SortBy   string
	Desc     bool
}

// ApplyQuery runs the pipeline stages in order: day-range filter,
// category filter (skipped while searching), free-text search, then a
// stable sort.
func ApplyQuery(entries []ResolvedDispatchEntry, q Query) []ResolvedDispatchEntry {
	out := make([]ResolvedDispatchEntry, 0, len(entries))
	search := strings.ToLower(strings.TrimSpace(q.Search))
	for _, e := range entries {
		if q.Days != nil && !inDayRange(e.DaysInYard, *q.Days) {
			continue
		}
		if search != "" {
			if !matchesSearch(e, search) {
				continue
			}
		} else if !matchesCategory(e, q.Category) {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out, q.SortBy, q.Desc)
	return out
}

func inDayRange(days int, r DayRange) bool {
	if days < r.Min {
		return false
	}
	return r.Max == nil || days <= *r.Max
}

// searchFields are the values free-text search scans, per entry.
func searchFields(e ResolvedDispatchEntry) []string {
	fields := []string{
		e.Chassis,
		e.Customer,
		e.Model,
		e.SAPData,
		e.ScheduledDealer,
		e.TransportCompany,
		e.MatchedPO,
		e.Comment,
		e.StatusLabel,
	}
	if e.ReallocatedTo != nil {
		fields = append(fields, *e.ReallocatedTo)
	}
	return fields
}

func matchesSearch(e ResolvedDispatchEntry, loweredTerm string) bool {
	for _, f := range searchFields(e) {
		if strings.Contains(strings.ToLower(f), loweredTerm) {
			return true
		}
	}
	return false
}

func matchesCategory(e ResolvedDispatchEntry, c Category) bool {
	switch c {
	case "", CategoryAll:
		return true
	case CategoryNormal:
		return e.FlagState == FlagNormal
	case CategoryOnHold:
		return e.FlagState == FlagOnHold
	case CategoryTemporaryLeaving:
		return e.FlagState == FlagTemporaryLeaving
	case CategoryInvalidStock:
		return e.FlagState == FlagInvalidStock
	case CategoryServiceTicket:
		return e.FlagState == FlagServiceTicket
	case CategoryStatusOK:
		return e.Status == StatusOK
	case CategoryWrongStatus:
		return e.FlagState == FlagNormal && e.Status == StatusWrongStatus
	case CategoryNoReference:
		return e.FlagState == FlagNormal && e.Status == StatusNoReference
	case CategorySnowyStock:
		return e.FlagState == FlagNormal && isSnowyStock(e)
	case CategoryBooked:
		return e.FlagState == FlagNormal && !isSnowyStock(e) && isBooked(e)
	case CategoryWaitingForBooking:
		return e.FlagState == FlagNormal && !isSnowyStock(e) && !isBooked(e)
	case CategoryCanBeDispatched:
		return e.FlagState == FlagNormal && !isSnowyStock(e) && e.Status == StatusOK
	default:
		return false
	}
}

// sortEntries stable-sorts by the chosen column. The day-count column
// compares numerically, pickup times compare by instant, everything
// else by case-insensitive string order.
func sortEntries(entries []ResolvedDispatchEntry, column string, desc bool) {
	if column == "" {
		return
	}
	less := func(a, b ResolvedDispatchEntry) bool {
		switch column {
		case SortDaysInYard:
			return a.DaysInYard < b.DaysInYard
		case "estimatedPickupAt":
			at, bt := a.EstimatedPickupAt, b.EstimatedPickupAt
			if at == nil || bt == nil {
				return bt == nil && at != nil // records without a pickup time sort last
			}
			return at.Before(*bt)
		default:
			return strings.ToLower(sortValue(a, column)) < strings.ToLower(sortValue(b, column))
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

func sortValue(e ResolvedDispatchEntry, column string) string {
	switch column {
	case "chassis":
		return e.Chassis
	case "customer":
		return e.Customer
	case "model":
		return e.Model
	case "sapData":
		return e.SAPData
	case "scheduledDealer":
		return e.ScheduledDealer
	case "reallocatedTo":
		if e.ReallocatedTo == nil {
			return ""
		}
		return *e.ReallocatedTo
	case "dealerCheck":
		return string(e.DealerCheck)
	case "statusCheck":
		return e.StatusLabel
	case "matchedPO":
		return e.MatchedPO
	case "transportCompany":
		return e.TransportCompany
	case "comment":
		return e.Comment
	default:
		return e.Chassis
	}
}
