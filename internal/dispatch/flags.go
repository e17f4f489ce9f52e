package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// FlagState is the single operational state a record occupies. The
// four flags are mutually exclusive; a record with none active is
// Normal.
type FlagState string

const (
	FlagNormal           FlagState = "normal"
	FlagOnHold           FlagState = "onHold"
	FlagTemporaryLeaving FlagState = "temporaryLeaving"
	FlagInvalidStock     FlagState = "invalidStock"
	FlagServiceTicket    FlagState = "serviceTicket"
)

var (
	// ErrCommentRequired rejects a temporary-leaving activation made
	// without a comment.
	ErrCommentRequired = errors.New("comment required")
	// ErrUnknownFlag rejects a transition naming no known flag.
	ErrUnknownFlag = errors.New("unknown flag")
)

// flagField maps each non-Normal state to its patch field key.
var flagField = map[FlagState]string{
	FlagOnHold:           models.FieldOnHold,
	FlagTemporaryLeaving: models.FieldTemporaryLeaving,
	FlagInvalidStock:     models.FieldInvalidStock,
	FlagServiceTicket:    models.FieldServiceTicket,
}

// ParseFlagState converts a wire string to a FlagState.
func ParseFlagState(s string) (FlagState, error) {
	switch FlagState(s) {
	case FlagNormal, FlagOnHold, FlagTemporaryLeaving, FlagInvalidStock, FlagServiceTicket:
		return FlagState(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFlag, s)
	}
}

// CurrentFlagState derives the record's state from its flag vector.
// Under the mutual-exclusion invariant at most one flag is active; if
// upstream data ever violates that, the first active flag in the fixed
// onHold, temporaryLeaving, invalidStock, serviceTicket order wins.
func CurrentFlagState(r models.VehicleRecord) FlagState {
	switch {
	case r.OnHold.Active:
		return FlagOnHold
	case r.TemporaryLeaving.Active:
		return FlagTemporaryLeaving
	case r.InvalidStock.Active:
		return FlagInvalidStock
	case r.ServiceTicket.Active:
		return FlagServiceTicket
	default:
		return FlagNormal
	}
}

// FlagMachine validates flag transitions and expands them into full
// shallow-merge patches. One instance is shared by a record collection.
type FlagMachine struct {
	actor string
	now   func() time.Time
}

// NewFlagMachine returns a machine stamping transitions with the given
// actor. An empty actor falls back to the application literal.
func NewFlagMachine(actor string) *FlagMachine {
	if actor == "" {
		actor = models.Actor
	}
	return &FlagMachine{actor: actor, now: time.Now}
}

// Activate builds the patch that moves a record into the target flag
// state. The patch clears the other three flags in the same atomic
// write, so no emitted patch can ever leave two flags active.
// Activating temporaryLeaving requires a non-empty comment; a comment
// supplied with serviceTicket is carried but optional. Activating
// FlagNormal is not a transition; use Deactivate.
func (m *FlagMachine) Activate(target FlagState, comment string) (models.Patch, error) {
	field, ok := flagField[target]
	if !ok {
		return nil, fmt.Errorf("%w: cannot activate %q", ErrUnknownFlag, target)
	}
	comment = strings.TrimSpace(comment)
	if target == FlagTemporaryLeaving && comment == "" {
		return nil, ErrCommentRequired
	}

	at := m.now()
	by := m.actor
	patch := models.Patch{
		field: models.FlagField{Active: true, At: &at, By: &by},
	}
	for state, other := range flagField {
		if state == target {
			continue
		}
		patch[other] = models.FlagField{Active: false}
	}
	if comment != "" && (target == FlagTemporaryLeaving || target == FlagServiceTicket) {
		patch[models.FieldComment] = comment
	}
	return patch, nil
}

// Deactivate builds the patch that toggles the target flag off,
// returning the record to Normal. The other flags are already inactive
// by the mutual-exclusion invariant and are left untouched.
func (m *FlagMachine) Deactivate(target FlagState) (models.Patch, error) {
	field, ok := flagField[target]
	if !ok {
		return nil, fmt.Errorf("%w: cannot deactivate %q", ErrUnknownFlag, target)
	}
	return models.Patch{field: models.FlagField{Active: false}}, nil
}

// Toggle activates the target flag when the record is in any other
// state and deactivates it when it is already active.
func (m *FlagMachine) Toggle(r models.VehicleRecord, target FlagState, comment string) (models.Patch, error) {
	if CurrentFlagState(r) == target {
		return m.Deactivate(target)
	}
	return m.Activate(target, comment)
}
