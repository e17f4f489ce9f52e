package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zyansaber/dispatching-3-sub000/internal/dispatch"
	"github.com/zyansaber/dispatching-3-sub000/internal/middleware"
	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// DispatchHandler serves the reconciled dispatch record set and the
// write operations against it.
type DispatchHandler struct {
	engine *dispatch.Engine
}

// NewDispatchHandler creates a new dispatch handler
func NewDispatchHandler(engine *dispatch.Engine) *DispatchHandler {
	return &DispatchHandler{engine: engine}
}

// Records handles GET /api/dispatch/records with optional search,
// category, day-range and sort query parameters.
func (h *DispatchHandler) Records(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries := h.engine.Query(query)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// Stats handles GET /api/dispatch/stats.
func (h *DispatchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.engine.Stats())
}

// flagRequest is the body of a flag toggle call.
type flagRequest struct {
	State   string `json:"state"`
	Comment string `json:"comment"`
}

// fieldRequest is the body of a single-field edit call. A null value
// clears the field.
type fieldRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Record routes /api/dispatch/records/{chassis} and its subpaths:
// GET fetches one record, PATCH edits one field, POST .../flags
// toggles a flag, DELETE .../error clears the write error.
func (h *DispatchHandler) Record(w http.ResponseWriter, r *http.Request) {
	chassis, sub, ok := splitRecordPath(r.URL.Path)
	if !ok {
		http.Error(w, "Chassis required", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.getRecord(w, r, chassis)
	case sub == "" && r.Method == http.MethodPatch:
		if !requirePermission(w, r, models.PermissionEditRecords) {
			return
		}
		h.patchRecord(w, r, chassis)
	case sub == "flags" && r.Method == http.MethodPost:
		if !requirePermission(w, r, models.PermissionEditRecords) {
			return
		}
		h.toggleFlag(w, r, chassis)
	case sub == "error" && r.Method == http.MethodDelete:
		if !requirePermission(w, r, models.PermissionEditRecords) {
			return
		}
		h.engine.ClearWriteError(chassis)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// requirePermission checks the authenticated caller's role for the
// given action, writing the error response itself when the check fails.
// GET on the record routes stays open to viewers, so the write branches
// check here rather than wrapping the whole route.
func requirePermission(w http.ResponseWriter, r *http.Request, action string) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return false
	}
	user := &models.User{Role: claims.Role}
	if !user.HasPermission(action) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return false
	}
	return true
}

func (h *DispatchHandler) getRecord(w http.ResponseWriter, r *http.Request, chassis string) {
	entry, ok := h.engine.Entry(chassis)
	if !ok {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *DispatchHandler) patchRecord(w http.ResponseWriter, r *http.Request, chassis string) {
	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Field == "" {
		http.Error(w, "Field is required", http.StatusBadRequest)
		return
	}

	if err := h.engine.UpdateField(chassis, req.Field, req.Value); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *DispatchHandler) toggleFlag(w http.ResponseWriter, r *http.Request, chassis string) {
	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	state, err := dispatch.ParseFlagState(req.State)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.engine.ToggleFlag(chassis, state, req.Comment); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// writeEngineError maps the engine's validation errors onto HTTP
// statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dispatch.ErrCommentRequired),
		errors.Is(err, dispatch.ErrPickupInPast),
		errors.Is(err, dispatch.ErrFieldNotEditable),
		errors.Is(err, dispatch.ErrUnknownFlag):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// splitRecordPath extracts the chassis and optional trailing segment
// from /api/dispatch/records/{chassis}[/{sub}].
func splitRecordPath(path string) (chassis, sub string, ok bool) {
	rest := strings.TrimPrefix(path, "/api/dispatch/records/")
	if rest == path || rest == "" {
		return "", "", false
	}
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	chassis = parts[0]
	if chassis == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		sub = parts[1]
	}
	return chassis, sub, true
}

func parseQuery(r *http.Request) (dispatch.Query, error) {
	values := r.URL.Query()
	q := dispatch.Query{
		Category: dispatch.Category(values.Get("category")),
		Search:   values.Get("search"),
		SortBy:   values.Get("sortBy"),
		Desc:     values.Get("desc") == "true",
	}

	minStr, maxStr := values.Get("minDays"), values.Get("maxDays")
	if minStr != "" || maxStr != "" {
		days := dispatch.DayRange{}
		if minStr != "" {
			min, err := strconv.Atoi(minStr)
			if err != nil {
				return dispatch.Query{}, errors.New("minDays must be an integer")
			}
			days.Min = min
		}
		if maxStr != "" {
			max, err := strconv.Atoi(maxStr)
			if err != nil {
				return dispatch.Query{}, errors.New("maxDays must be an integer")
			}
			days.Max = &max
		}
		q.Days = &days
	}
	return q, nil
}
