package models

import (
	"strings"
	"time"
)

// Actor is the fixed identifier recorded on every flag activation made
// through this application.
const Actor = "DispatchingWeb"

// SnowyStockDealer is the sentinel dealer name meaning "no confirmed
// buyer yet"; records assigned to it are excluded from booking counts.
const SnowyStockDealer = "Snowy Stock"

// Patch is a partial-field update with shallow-merge semantics: fields
// absent from the patch are untouched, fields present with a nil value
// are cleared.
type Patch map[string]any

// Field keys accepted by VehicleRecord patches. They double as the
// store path segments for partial writes.
const (
	FieldCustomer          = "customer"
	FieldModel             = "model"
	FieldSAPData           = "sapData"
	FieldScheduledDealer   = "scheduledDealer"
	FieldStatusCheck       = "statusCheck"
	FieldMatchedPO         = "matchedPO"
	FieldTransportCompany  = "transportCompany"
	FieldEstimatedPickupAt = "estimatedPickupAt"
	FieldReceivedAt        = "receivedAt"
	FieldComment           = "comment"
	FieldOnHold            = "onHold"
	FieldTemporaryLeaving  = "temporaryLeaving"
	FieldInvalidStock      = "invalidStock"
	FieldServiceTicket     = "serviceTicket"
)

// FlagField is one operational flag on a vehicle record: whether it is
// active, when it was set and by whom. At and By are nil whenever the
// flag is inactive.
type FlagField struct {
	Active bool       `bson:"active" json:"active"`
	At     *time.Time `bson:"at,omitempty" json:"at,omitempty"`
	By     *string    `bson:"by,omitempty" json:"by,omitempty"`
}

// VehicleRecord is a vehicle moving through the dispatch pipeline,
// keyed by chassis number. It is created by the upstream production
// feed and mutated only through partial-field patches.
type VehicleRecord struct {
	Chassis           string     `bson:"_id" json:"chassis"`
	Customer          string     `bson:"customer,omitempty" json:"customer,omitempty"`
	Model             string     `bson:"model,omitempty" json:"model,omitempty"`
	SAPData           string     `bson:"sapData,omitempty" json:"sapData,omitempty"`
	ScheduledDealer   string     `bson:"scheduledDealer,omitempty" json:"scheduledDealer,omitempty"`
	StatusCheck       string     `bson:"statusCheck,omitempty" json:"statusCheck,omitempty"`
	MatchedPO         string     `bson:"matchedPO,omitempty" json:"matchedPO,omitempty"`
	TransportCompany  string     `bson:"transportCompany,omitempty" json:"transportCompany,omitempty"`
	EstimatedPickupAt *time.Time `bson:"estimatedPickupAt,omitempty" json:"estimatedPickupAt,omitempty"`
	ReceivedAt        *time.Time `bson:"receivedAt,omitempty" json:"receivedAt,omitempty"`
	Comment           string     `bson:"comment,omitempty" json:"comment,omitempty"`

	OnHold           FlagField `bson:"onHold" json:"onHold"`
	TemporaryLeaving FlagField `bson:"temporaryLeaving" json:"temporaryLeaving"`
	InvalidStock     FlagField `bson:"invalidStock" json:"invalidStock"`
	ServiceTicket    FlagField `bson:"serviceTicket" json:"serviceTicket"`

	// Extra carries unknown upstream fields. They are stored and
	// round-tripped but never inspected by the core.
	Extra map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}

// Field returns the value of a patchable field by key. Unknown keys
// return nil.
func (r VehicleRecord) Field(key string) any {
	switch key {
	case FieldCustomer:
		return r.Customer
	case FieldModel:
		return r.Model
	case FieldSAPData:
		return r.SAPData
	case FieldScheduledDealer:
		return r.ScheduledDealer
	case FieldStatusCheck:
		return r.StatusCheck
	case FieldMatchedPO:
		return r.MatchedPO
	case FieldTransportCompany:
		return r.TransportCompany
	case FieldEstimatedPickupAt:
		return r.EstimatedPickupAt
	case FieldReceivedAt:
		return r.ReceivedAt
	case FieldComment:
		return r.Comment
	case FieldOnHold:
		return r.OnHold
	case FieldTemporaryLeaving:
		return r.TemporaryLeaving
	case FieldInvalidStock:
		return r.InvalidStock
	case FieldServiceTicket:
		return r.ServiceTicket
	default:
		return nil
	}
}

// Apply returns a copy of the record with the patch shallow-merged in.
// A nil patch value clears the field. Unknown keys are ignored.
func (r VehicleRecord) Apply(patch Patch) VehicleRecord {
	for key, value := range patch {
		switch key {
		case FieldCustomer:
			r.Customer = asString(value)
		case FieldModel:
			r.Model = asString(value)
		case FieldSAPData:
			r.SAPData = asString(value)
		case FieldScheduledDealer:
			r.ScheduledDealer = asString(value)
		case FieldStatusCheck:
			r.StatusCheck = asString(value)
		case FieldMatchedPO:
			r.MatchedPO = asString(value)
		case FieldTransportCompany:
			r.TransportCompany = asString(value)
		case FieldEstimatedPickupAt:
			r.EstimatedPickupAt = asTime(value)
		case FieldReceivedAt:
			r.ReceivedAt = asTime(value)
		case FieldComment:
			r.Comment = asString(value)
		case FieldOnHold:
			r.OnHold = asFlag(value)
		case FieldTemporaryLeaving:
			r.TemporaryLeaving = asFlag(value)
		case FieldInvalidStock:
			r.InvalidStock = asFlag(value)
		case FieldServiceTicket:
			r.ServiceTicket = asFlag(value)
		}
	}
	return r
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) *time.Time {
	switch t := v.(type) {
	case *time.Time:
		return t
	case time.Time:
		return &t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return &parsed
		}
		return nil
	default:
		return nil
	}
}

func asFlag(v any) FlagField {
	switch f := v.(type) {
	case FlagField:
		return f
	case *FlagField:
		if f != nil {
			return *f
		}
		return FlagField{}
	default:
		return FlagField{}
	}
}

// ReallocationEntry is one dated reassignment of a vehicle's
// destination dealer. Many entries may exist per chassis; the resolver
// collapses them to the single current one.
type ReallocationEntry struct {
	Chassis       string `bson:"chassis" json:"chassis"`
	EntryID       string `bson:"entryId" json:"entryId"`
	Date          string `bson:"date,omitempty" json:"date,omitempty"` // DD/MM/YYYY
	SubmittedAt   string `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	ReallocatedTo string `bson:"reallocatedTo,omitempty" json:"reallocatedTo,omitempty"`
	Issue         string `bson:"issue,omitempty" json:"issue,omitempty"`

	Extra map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}

// ScheduleEntry is a row of the external production schedule feed,
// joined by chassis during reallocation resolution.
type ScheduleEntry struct {
	Chassis string `bson:"_id" json:"chassis"`
	Status  string `bson:"status,omitempty" json:"status,omitempty"`
	Model   string `bson:"model,omitempty" json:"model,omitempty"`
	Dealer  string `bson:"dealer,omitempty" json:"dealer,omitempty"`
}

// ScheduleStatusFinished excludes a chassis from reallocation
// resolution entirely.
const ScheduleStatusFinished = "Finished"

// NormalizeChassis folds a chassis number for case-insensitive joins
// across the independently-sourced feeds.
func NormalizeChassis(chassis string) string {
	return strings.ToUpper(strings.TrimSpace(chassis))
}
