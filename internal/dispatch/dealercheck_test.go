package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestValidateDealer_TruthTable(t *testing.T) {
	tests := []struct {
		name          string
		sapData       string
		scheduled     string
		reallocatedTo *string
		want          DealerCheck
	}{
		{"all three present and equal", "Dealer A", "Dealer A", strPtr("Dealer A"), DealerCheckOK},
		{"sap and scheduled agree, no reallocation", "Dealer A", "Dealer A", nil, DealerCheckOK},
		{"reallocation disagrees", "Dealer A", "Dealer A", strPtr("Dealer B"), DealerCheckMismatch},
		{"sap and scheduled disagree", "Dealer A", "Dealer B", nil, DealerCheckMismatch},
		{"sap missing", "", "Dealer A", nil, DealerCheckMismatch},
		{"scheduled missing", "Dealer A", "", nil, DealerCheckMismatch},
		{"all missing", "", "", nil, DealerCheckMismatch},
		{"reallocation present but empty", "Dealer A", "Dealer A", strPtr(""), DealerCheckMismatch},
		{"whitespace only counts as missing", "  ", "Dealer A", nil, DealerCheckMismatch},
		{"surrounding whitespace ignored", " Dealer A ", "Dealer A", strPtr("Dealer A "), DealerCheckOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateDealer(tt.sapData, tt.scheduled, tt.reallocatedTo))
		})
	}
}
