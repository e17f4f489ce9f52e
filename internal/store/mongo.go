package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// Collection names backing the three feeds.
const (
	VehiclesCollection      = "vehicles"
	ReallocationsCollection = "reallocations"
	ScheduleCollection      = "schedule"
)

// MongoStore is the durable Store implementation. Every successful
// write refetches the full collection and pushes it to subscribers, so
// consumers see the same no-delta snapshot stream the memory store
// provides.
type MongoStore struct {
	db  *mongo.Database
	hub *broadcaster
}

// NewMongoStore wraps a connected database. publisher may be nil.
func NewMongoStore(db *mongo.Database, publisher Publisher) *MongoStore {
	return &MongoStore{db: db, hub: newBroadcaster(publisher)}
}

// FetchVehicles loads the whole vehicle collection keyed by escaped
// chassis.
func (s *MongoStore) FetchVehicles(ctx context.Context) (map[string]models.VehicleRecord, error) {
	cursor, err := s.db.Collection(VehiclesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("fetch vehicles: %w", err)
	}
	var records []models.VehicleRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	snapshot := make(map[string]models.VehicleRecord, len(records))
	for _, r := range records {
		snapshot[EscapeKey(r.Chassis)] = r
	}
	return snapshot, nil
}

// FetchReallocations loads the full reallocation history.
func (s *MongoStore) FetchReallocations(ctx context.Context) ([]models.ReallocationEntry, error) {
	cursor, err := s.db.Collection(ReallocationsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("fetch reallocations: %w", err)
	}
	var entries []models.ReallocationEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode reallocations: %w", err)
	}
	return entries, nil
}

// FetchSchedule loads the production schedule keyed by escaped
// chassis.
func (s *MongoStore) FetchSchedule(ctx context.Context) (map[string]models.ScheduleEntry, error) {
	cursor, err := s.db.Collection(ScheduleCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	var entries []models.ScheduleEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	schedule := make(map[string]models.ScheduleEntry, len(entries))
	for _, e := range entries {
		schedule[EscapeKey(e.Chassis)] = e
	}
	return schedule, nil
}

// SubscribeVehicles registers a push subscription for the vehicle
// collection.
func (s *MongoStore) SubscribeVehicles(ctx context.Context) (*VehicleSubscription, error) {
	return s.hub.subscribeVehicles()
}

// SubscribeReallocations registers a push subscription for the
// reallocation history.
func (s *MongoStore) SubscribeReallocations(ctx context.Context) (*ReallocationSubscription, error) {
	return s.hub.subscribeReallocations()
}

// PatchVehicle applies a shallow-merge patch: present fields are $set,
// nil fields are $unset, absent fields stay untouched.
func (s *MongoStore) PatchVehicle(ctx context.Context, chassis string, patch models.Patch) error {
	key := EscapeKey(chassis)
	set := bson.M{}
	unset := bson.M{}
	for field, value := range patch {
		if value == nil {
			unset[field] = ""
			continue
		}
		set[field] = value
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return nil
	}

	result, err := s.db.Collection(VehiclesCollection).UpdateByID(ctx, key, update)
	if err != nil {
		return fmt.Errorf("patch vehicle %q: %w", chassis, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("patch vehicle %q: record not found", chassis)
	}
	s.notifyVehicles(ctx)
	return nil
}

// PutVehicle creates or replaces a record.
func (s *MongoStore) PutVehicle(ctx context.Context, record models.VehicleRecord) error {
	if record.Chassis == "" {
		return fmt.Errorf("put vehicle: chassis required")
	}
	record.Chassis = EscapeKey(record.Chassis)
	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(VehiclesCollection).ReplaceOne(ctx, bson.M{"_id": record.Chassis}, record, opts); err != nil {
		return fmt.Errorf("put vehicle %q: %w", record.Chassis, err)
	}
	s.notifyVehicles(ctx)
	return nil
}

// PutReallocation appends or replaces one history entry.
func (s *MongoStore) PutReallocation(ctx context.Context, entry models.ReallocationEntry) error {
	if entry.Chassis == "" || entry.EntryID == "" {
		return fmt.Errorf("put reallocation: chassis and entry id required")
	}
	filter := bson.M{"chassis": entry.Chassis, "entryId": entry.EntryID}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(ReallocationsCollection).ReplaceOne(ctx, filter, entry, opts); err != nil {
		return fmt.Errorf("put reallocation %q/%q: %w", entry.Chassis, entry.EntryID, err)
	}
	s.notifyReallocations(ctx)
	return nil
}

// PutSchedule creates or replaces one schedule row.
func (s *MongoStore) PutSchedule(ctx context.Context, entry models.ScheduleEntry) error {
	if entry.Chassis == "" {
		return fmt.Errorf("put schedule: chassis required")
	}
	entry.Chassis = EscapeKey(entry.Chassis)
	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(ScheduleCollection).ReplaceOne(ctx, bson.M{"_id": entry.Chassis}, entry, opts); err != nil {
		return fmt.Errorf("put schedule %q: %w", entry.Chassis, err)
	}
	return nil
}

// Refresh force-pushes the current collections to all subscribers.
// The periodic resnapshot job uses it to converge after any missed
// change notification.
func (s *MongoStore) Refresh(ctx context.Context) {
	s.notifyVehicles(ctx)
	s.notifyReallocations(ctx)
}

// Close cancels every subscription.
func (s *MongoStore) Close() {
	s.hub.close()
}

func (s *MongoStore) notifyVehicles(ctx context.Context) {
	snapshot, err := s.FetchVehicles(ctx)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("vehicle snapshot refetch failed")
		return
	}
	s.hub.pushVehicles(snapshot)
}

func (s *MongoStore) notifyReallocations(ctx context.Context) {
	entries, err := s.FetchReallocations(ctx)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("reallocation snapshot refetch failed")
		return
	}
	s.hub.pushReallocations(entries)
}
