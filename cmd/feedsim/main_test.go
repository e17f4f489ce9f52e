package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

func TestRandomRecord(t *testing.T) {
	record := randomRecord("RE2600001")

	if record.Chassis != "RE2600001" {
		t.Errorf("Expected chassis 'RE2600001', got %s", record.Chassis)
	}
	if record.Model == "" {
		t.Error("Expected a model to be set")
	}
	if record.ScheduledDealer == "" {
		t.Error("Expected a scheduled dealer to be set")
	}
	if record.ReceivedAt == nil || record.ReceivedAt.After(time.Now()) {
		t.Error("Expected a received time in the past")
	}
}

func TestRandomReallocation(t *testing.T) {
	entry := randomReallocation("RE2600001")

	if entry.Chassis != "RE2600001" {
		t.Errorf("Expected chassis 'RE2600001', got %s", entry.Chassis)
	}
	if entry.EntryID == "" {
		t.Error("Expected an entry id to be generated")
	}
	if _, err := time.Parse("02/01/2006", entry.Date); err != nil {
		t.Errorf("Date not in DD/MM/YYYY format: %s", entry.Date)
	}
	if _, err := time.Parse(time.RFC3339, entry.SubmittedAt); err != nil {
		t.Errorf("SubmittedAt not RFC3339: %s", entry.SubmittedAt)
	}
}

func TestPostJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		var record models.VehicleRecord
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	if err := postJSON(server.URL, "/feed/vehicles", randomRecord("RE2600001")); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
}

func TestPostJSON_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := postJSON(server.URL, "/feed/vehicles", randomRecord("RE2600001")); err == nil {
		t.Error("Expected an error for server failure")
	}
}

func TestAuthorizedPost_SetsToken(t *testing.T) {
	authToken = "test-token"
	defer func() { authToken = "" }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Expected bearer token, got %s", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	if err := postJSON(server.URL, "/feed/schedule", randomSchedule("RE2600001")); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
}
