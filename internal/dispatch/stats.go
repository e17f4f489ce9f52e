package dispatch

import (
	"strings"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// Stats are the dashboard counts over the resolved-and-overlaid record
// set. Invariants: Total == Normal + the four flag counts, and
// Normal == Booked + WaitingForBooking + SnowyStock.
type Stats struct {
	Total int `json:"total"`

	Normal           int `json:"normal"`
	OnHold           int `json:"onHold"`
	TemporaryLeaving int `json:"temporaryLeaving"`
	InvalidStock     int `json:"invalidStock"`
	ServiceTicket    int `json:"serviceTicket"`

	StatusOK int `json:"statusOK"`

	// The remaining counts cover Normal-state records only.
	WrongStatus       int `json:"wrongStatus"`
	NoReference       int `json:"noReference"`
	SnowyStock        int `json:"snowyStock"`
	Booked            int `json:"booked"`
	WaitingForBooking int `json:"waitingForBooking"`
	CanBeDispatched   int `json:"canBeDispatched"`
}

// Aggregate computes dashboard stats over a resolved record set.
func Aggregate(entries []ResolvedDispatchEntry) Stats {
	var s Stats
	s.Total = len(entries)
	for _, e := range entries {
		if e.Status == StatusOK {
			s.StatusOK++
		}
		switch e.FlagState {
		case FlagOnHold:
			s.OnHold++
			continue
		case FlagTemporaryLeaving:
			s.TemporaryLeaving++
			continue
		case FlagInvalidStock:
			s.InvalidStock++
			continue
		case FlagServiceTicket:
			s.ServiceTicket++
			continue
		}

		s.Normal++
		switch e.Status {
		case StatusWrongStatus:
			s.WrongStatus++
		case StatusNoReference:
			s.NoReference++
		}

		if isSnowyStock(e) {
			s.SnowyStock++
			continue
		}
		if isBooked(e) {
			s.Booked++
		} else {
			s.WaitingForBooking++
		}
		if e.Status == StatusOK {
			s.CanBeDispatched++
		}
	}
	return s
}

// isSnowyStock reports whether the record's effective dealer is the
// unassigned-stock sentinel.
func isSnowyStock(e ResolvedDispatchEntry) bool {
	return strings.EqualFold(strings.TrimSpace(e.EffectiveDealer()), models.SnowyStockDealer)
}

// isBooked reports whether a non-snowy record carries a transport
// booking reference.
func isBooked(e ResolvedDispatchEntry) bool {
	return strings.TrimSpace(e.TransportCompany) != "" || strings.TrimSpace(e.MatchedPO) != ""
}
