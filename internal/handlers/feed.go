package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
	"github.com/zyansaber/dispatching-3-sub000/internal/store"
)

// FeedHandler ingests the upstream production feeds. Each endpoint
// upserts one document and relies on the store's push subscriptions to
// propagate the change into the reconciliation core.
type FeedHandler struct {
	store store.Store
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(st store.Store) *FeedHandler {
	return &FeedHandler{store: st}
}

// Vehicles handles POST /api/feed/vehicles.
func (h *FeedHandler) Vehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var record models.VehicleRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if record.Chassis == "" {
		http.Error(w, "Chassis is required", http.StatusBadRequest)
		return
	}

	if err := h.store.PutVehicle(r.Context(), record); err != nil {
		log.WithFields(log.Fields{
			"chassis": record.Chassis,
			"error":   err.Error(),
		}).Error("Failed to store vehicle record")
		http.Error(w, "Failed to store record", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"chassis": record.Chassis})
}

// Reallocations handles POST /api/feed/reallocations. Entries arriving
// without an id are assigned one.
func (h *FeedHandler) Reallocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var entry models.ReallocationEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if entry.Chassis == "" {
		http.Error(w, "Chassis is required", http.StatusBadRequest)
		return
	}
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}

	if err := h.store.PutReallocation(r.Context(), entry); err != nil {
		log.WithFields(log.Fields{
			"chassis":  entry.Chassis,
			"entry_id": entry.EntryID,
			"error":    err.Error(),
		}).Error("Failed to store reallocation entry")
		http.Error(w, "Failed to store entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"entryId": entry.EntryID})
}

// Schedule handles POST /api/feed/schedule.
func (h *FeedHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var entry models.ScheduleEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if entry.Chassis == "" {
		http.Error(w, "Chassis is required", http.StatusBadRequest)
		return
	}

	if err := h.store.PutSchedule(r.Context(), entry); err != nil {
		log.WithFields(log.Fields{
			"chassis": entry.Chassis,
			"error":   err.Error(),
		}).Error("Failed to store schedule entry")
		http.Error(w, "Failed to store entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"chassis": entry.Chassis})
}
