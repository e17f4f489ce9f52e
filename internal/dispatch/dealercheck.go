package dispatch

import "strings"

// DealerCheck classifies a vehicle's three independently-sourced
// dealer fields as consistent or not.
type DealerCheck string

const (
	DealerCheckOK       DealerCheck = "OK"
	DealerCheckMismatch DealerCheck = "Mismatch"
)

// ValidateDealer compares the SAP-reported destination, the scheduled
// dealer and the current reallocation target (nil when the vehicle has
// no reallocation). OK when all three are present and equal, or when
// SAP and scheduled agree and no reallocation exists; Mismatch in
// every other case, including missing required fields. Pure and total.
func ValidateDealer(sapData, scheduledDealer string, reallocatedTo *string) DealerCheck {
	sap := strings.TrimSpace(sapData)
	scheduled := strings.TrimSpace(scheduledDealer)

	if sap == "" || scheduled == "" || sap != scheduled {
		return DealerCheckMismatch
	}
	if reallocatedTo == nil {
		return DealerCheckOK
	}
	if strings.TrimSpace(*reallocatedTo) == sap {
		return DealerCheckOK
	}
	return DealerCheckMismatch
}
