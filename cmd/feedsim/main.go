package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

var dealers = []string{
	"Dealer North", "Dealer South", "Dealer East", "Dealer West",
	"Coastal Caravans", "Highland RV", models.SnowyStockDealer,
}

var caravanModels = []string{
	"Tourer 186", "Tourer 206", "Offroad 226", "Family 246", "Compact 166",
}

var customers = []string{
	"Acme Caravans", "Beta Motors", "Gamma Leisure", "Delta Outdoors", "",
}

var transportCompanies = []string{
	"Haul Co", "Interstate Transport", "Eastbound Freight", "",
}

var scheduleStatuses = []string{
	"Sealed", "Fitout", "Finished", "Dispatched",
}

var authToken string

func authorizedPost(url string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func randomChassis(i int) string {
	return fmt.Sprintf("RE%d%05d", 20+rand.Intn(9), i)
}

func randomRecord(chassis string) models.VehicleRecord {
	dealer := dealers[rand.Intn(len(dealers))]
	received := time.Now().AddDate(0, 0, -rand.Intn(60))
	record := models.VehicleRecord{
		Chassis:         chassis,
		Customer:        customers[rand.Intn(len(customers))],
		Model:           caravanModels[rand.Intn(len(caravanModels))],
		SAPData:         dealer,
		ScheduledDealer: dealer,
		StatusCheck:     []string{"OK", "ok", "", "Invalid Stock", "No Reference"}[rand.Intn(5)],
		ReceivedAt:      &received,
	}
	if rand.Intn(3) == 0 {
		record.TransportCompany = transportCompanies[rand.Intn(len(transportCompanies))]
	}
	if rand.Intn(4) == 0 {
		record.MatchedPO = fmt.Sprintf("PO-%06d", rand.Intn(1000000))
	}
	// A slice of the fleet gets a dealer mismatch so the checks have
	// something to flag.
	if rand.Intn(5) == 0 {
		record.SAPData = dealers[rand.Intn(len(dealers))]
	}
	return record
}

func randomReallocation(chassis string) models.ReallocationEntry {
	date := time.Now().AddDate(0, 0, -rand.Intn(30))
	return models.ReallocationEntry{
		Chassis:       chassis,
		EntryID:       uuid.New().String(),
		Date:          date.Format("02/01/2006"),
		SubmittedAt:   date.Format(time.RFC3339),
		ReallocatedTo: dealers[rand.Intn(len(dealers))],
		Issue:         []string{"", "Customer cancelled", "Stock rebalance"}[rand.Intn(3)],
	}
}

func randomSchedule(chassis string) models.ScheduleEntry {
	return models.ScheduleEntry{
		Chassis: chassis,
		Status:  scheduleStatuses[rand.Intn(len(scheduleStatuses))],
		Model:   caravanModels[rand.Intn(len(caravanModels))],
		Dealer:  dealers[rand.Intn(len(dealers))],
	}
}

func postJSON(apiURL, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	resp, err := authorizedPost(apiURL+path, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("feed post failed with status: %d", resp.StatusCode)
	}
	return nil
}

func seedFleet(apiURL string, size int) []string {
	chassis := make([]string, 0, size)
	for i := 0; i < size; i++ {
		c := randomChassis(i + 1)
		if err := postJSON(apiURL, "/feed/vehicles", randomRecord(c)); err != nil {
			log.WithError(err).Error("Failed to seed vehicle")
			continue
		}
		if err := postJSON(apiURL, "/feed/schedule", randomSchedule(c)); err != nil {
			log.WithError(err).Error("Failed to seed schedule entry")
		}
		chassis = append(chassis, c)
		log.WithFields(log.Fields{"chassis": c}).Info("Seeded vehicle")
	}
	return chassis
}

// tick posts one random feed mutation, weighted towards reallocations
// since those drive the interesting resolution paths.
func tick(apiURL string, fleet []string) {
	if len(fleet) == 0 {
		return
	}
	chassis := fleet[rand.Intn(len(fleet))]
	switch rand.Intn(4) {
	case 0:
		if err := postJSON(apiURL, "/feed/vehicles", randomRecord(chassis)); err != nil {
			log.WithError(err).Error("Failed to post vehicle update")
			return
		}
		log.WithFields(log.Fields{"chassis": chassis}).Info("Posted vehicle update")
	case 1:
		if err := postJSON(apiURL, "/feed/schedule", randomSchedule(chassis)); err != nil {
			log.WithError(err).Error("Failed to post schedule update")
			return
		}
		log.WithFields(log.Fields{"chassis": chassis}).Info("Posted schedule update")
	default:
		entry := randomReallocation(chassis)
		if err := postJSON(apiURL, "/feed/reallocations", entry); err != nil {
			log.WithError(err).Error("Failed to post reallocation")
			return
		}
		log.WithFields(log.Fields{"chassis": chassis, "to": entry.ReallocatedTo}).Info("Posted reallocation")
	}
}

func main() {
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	fleetSize := 25
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			fleetSize = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 5 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting dispatch feed simulation")

	fleet := seedFleet(apiURL, fleetSize)
	if len(fleet) == 0 {
		log.Fatal("No vehicles seeded, is the server running?")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		tick(apiURL, fleet)
	}
}
