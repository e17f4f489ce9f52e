package dispatch

import "strings"

// StatusCategory is the closed set of status-check classifications.
// Category drives filtering and stats; display strings come from
// StatusLabel only.
type StatusCategory string

const (
	StatusOK          StatusCategory = "ok"
	StatusWrongStatus StatusCategory = "wrongStatus"
	StatusNoReference StatusCategory = "noReference"
	StatusInvalid     StatusCategory = "invalid"
)

// ClassifyStatus maps a raw status-check code to its category. Input
// is trimmed and lower-cased first. The "no referencenn" variant is a
// long-standing upstream typo that must keep classifying as
// noReference.
func ClassifyStatus(raw string) StatusCategory {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "ok":
		return StatusOK
	case "invalid stock":
		return StatusWrongStatus
	case "no reference", "no referencenn":
		return StatusNoReference
	default:
		return StatusInvalid
	}
}

// StatusLabel renders the human display string for a raw status-check
// code. Unrecognized codes fall back to the trimmed input, or "-" when
// empty.
func StatusLabel(raw string) string {
	switch ClassifyStatus(raw) {
	case StatusOK:
		return "OK"
	case StatusWrongStatus:
		return "Invalid Stock"
	case StatusNoReference:
		return "No Reference"
	default:
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return "-"
		}
		return trimmed
	}
}
