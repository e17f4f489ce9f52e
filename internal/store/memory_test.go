package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

func TestMemoryStore_PutAndFetchVehicles(t *testing.T) {
	st := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, st.PutVehicle(ctx, models.VehicleRecord{Chassis: "ABC123", Customer: "Acme"}))

	snapshot, err := st.FetchVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Acme", snapshot["ABC123"].Customer)
}

func TestMemoryStore_PatchShallowMerge(t *testing.T) {
	st := NewMemoryStore(nil)
	ctx := context.Background()
	require.NoError(t, st.PutVehicle(ctx, models.VehicleRecord{
		Chassis: "ABC123", Customer: "Acme", TransportCompany: "Big Haul",
	}))

	require.NoError(t, st.PatchVehicle(ctx, "ABC123", models.Patch{
		models.FieldTransportCompany: "Fast Freight",
	}))

	snapshot, err := st.FetchVehicles(ctx)
	require.NoError(t, err)
	record := snapshot["ABC123"]
	assert.Equal(t, "Fast Freight", record.TransportCompany)
	assert.Equal(t, "Acme", record.Customer, "fields absent from the patch stay untouched")
}

func TestMemoryStore_PatchNilClearsField(t *testing.T) {
	st := NewMemoryStore(nil)
	ctx := context.Background()
	pickup := time.Now()
	require.NoError(t, st.PutVehicle(ctx, models.VehicleRecord{Chassis: "ABC123", EstimatedPickupAt: &pickup}))

	require.NoError(t, st.PatchVehicle(ctx, "ABC123", models.Patch{models.FieldEstimatedPickupAt: nil}))

	snapshot, err := st.FetchVehicles(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot["ABC123"].EstimatedPickupAt)
}

func TestMemoryStore_PatchUnknownRecordFails(t *testing.T) {
	st := NewMemoryStore(nil)
	err := st.PatchVehicle(context.Background(), "ZZZ999", models.Patch{models.FieldComment: "x"})
	assert.Error(t, err)
}

func TestMemoryStore_SubscriptionDeliversFullCollection(t *testing.T) {
	st := NewMemoryStore(nil)
	ctx := context.Background()

	sub, err := st.SubscribeVehicles(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, st.PutVehicle(ctx, models.VehicleRecord{Chassis: "ABC123"}))
	require.NoError(t, st.PutVehicle(ctx, models.VehicleRecord{Chassis: "DEF456"}))

	// Latest-wins delivery: the pending snapshot is the newest one and
	// contains the whole collection, not a delta.
	select {
	case snapshot := <-sub.Updates():
		assert.Len(t, snapshot, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestMemoryStore_CancelClosesUpdates(t *testing.T) {
	st := NewMemoryStore(nil)
	sub, err := st.SubscribeVehicles(context.Background())
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel() // safe to call twice

	_, open := <-sub.Updates()
	assert.False(t, open)
}

func TestMemoryStore_ReallocationSubscription(t *testing.T) {
	st := NewMemoryStore(nil)
	ctx := context.Background()
	sub, err := st.SubscribeReallocations(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, st.PutReallocation(ctx, models.ReallocationEntry{
		Chassis: "ABC123", EntryID: "e1", Date: "01/03/2024", ReallocatedTo: "Dealer X",
	}))

	select {
	case entries := <-sub.Updates():
		require.Len(t, entries, 1)
		assert.Equal(t, "Dealer X", entries[0].ReallocatedTo)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestMemoryStore_SubscribeAfterCloseFails(t *testing.T) {
	st := NewMemoryStore(nil)
	st.Close()
	_, err := st.SubscribeVehicles(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

type capturingPublisher struct {
	snapshots []map[string]models.VehicleRecord
}

func (p *capturingPublisher) PublishVehicles(snapshot map[string]models.VehicleRecord) {
	p.snapshots = append(p.snapshots, snapshot)
}

func TestMemoryStore_MirrorsSnapshotsToPublisher(t *testing.T) {
	publisher := &capturingPublisher{}
	st := NewMemoryStore(publisher)

	require.NoError(t, st.PutVehicle(context.Background(), models.VehicleRecord{Chassis: "ABC123"}))
	require.Len(t, publisher.snapshots, 1)
	assert.Contains(t, publisher.snapshots[0], "ABC123")
}
