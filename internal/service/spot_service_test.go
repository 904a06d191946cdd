package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/domain/parking"
)

func newTestSpotService(t *testing.T) (*SpotService, *memStore) {
	t.Helper()
	store := newMemStore()
	svc := NewSpotService(store, store, store, store, 15, zerolog.Nop())
	return svc, store
}

func mustCreateSpot(t *testing.T, svc *SpotService, label string) *parking.ParkingSpot {
	t.Helper()
	spot, err := svc.CreateSpot(context.Background(), label, 0)
	if err != nil {
		t.Fatalf("CreateSpot(%s): %v", label, err)
	}
	return spot
}

// Every transition pairing a session write with a spot write must put
// both inside one transaction, so a storage failure between them never
// persists half a transition.
func TestTransitions_PairedWritesAreTransactional(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")
	vehicle := mustRegisterVehicle(t, store, "ABC123")

	start := time.Now().Add(time.Hour)
	if err := svc.Reserve(ctx, "A1", "ABC123", start, start.Add(time.Hour)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := svc.CancelReservation(ctx, "A1"); err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if _, _, err := svc.OccupyForVehicle(ctx, vehicle); err != nil {
		t.Fatalf("OccupyForVehicle: %v", err)
	}
	if _, _, err := svc.VacateForVehicle(ctx, vehicle); err != nil {
		t.Fatalf("VacateForVehicle: %v", err)
	}

	// Reservation conversion is its own write pair.
	now := time.Now()
	if err := svc.Reserve(ctx, "A1", "ABC123", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if _, _, err := svc.OccupyForVehicle(ctx, vehicle); err != nil {
		t.Fatalf("conversion OccupyForVehicle: %v", err)
	}

	if store.txCount != 6 {
		t.Errorf("transactions: got %d, want 6", store.txCount)
	}
	if len(store.bareWrites) != 0 {
		t.Errorf("writes outside a transaction: %v", store.bareWrites)
	}
}

func mustRegisterVehicle(t *testing.T, store *memStore, plate string) *parking.Vehicle {
	t.Helper()
	v := &parking.Vehicle{Plate: plate}
	if err := store.CreateVehicle(context.Background(), v); err != nil {
		t.Fatalf("CreateVehicle(%s): %v", plate, err)
	}
	return v
}

func TestReserve_OverlappingWindowFails(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A2")
	mustRegisterVehicle(t, store, "ABC123")
	mustRegisterVehicle(t, store, "XYZ789")

	start := time.Now().Truncate(time.Second)
	if err := svc.Reserve(ctx, "A2", "ABC123", start, start.Add(time.Hour)); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	// Overlapping window on the booked spot must fail and leave the
	// first reservation intact.
	err := svc.Reserve(ctx, "A2", "XYZ789", start.Add(30*time.Minute), start.Add(90*time.Minute))
	if err == nil {
		t.Fatal("expected overlapping reserve to fail")
	}

	spot, _ := store.FindSpotByLabel(ctx, "A2")
	if spot.State != parking.SpotReserved {
		t.Errorf("spot state: got %s, want RESERVED", spot.State)
	}
	if spot.ReservationStart == nil || !spot.ReservationStart.Equal(start) {
		t.Errorf("first reservation window was disturbed: %v", spot.ReservationStart)
	}
}

func TestReserve_OpenSessionEntryInsideWindowFails(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	spot := mustCreateSpot(t, svc, "B1")
	vehicle := mustRegisterVehicle(t, store, "ABC123")
	other := mustRegisterVehicle(t, store, "XYZ789")

	start := time.Now().Truncate(time.Second)

	// An open session whose entry time falls inside the requested
	// window blocks the reservation even though the spot reads
	// available.
	store.CreateSession(ctx, &parking.ParkingSession{
		VehicleID: other.ID,
		SpotID:    spot.ID,
		EntryTime: start.Add(10 * time.Minute),
	})

	if err := svc.Reserve(ctx, "B1", vehicle.Plate, start, start.Add(time.Hour)); !errors.Is(err, ErrReservationOverlap) {
		t.Fatalf("expected ErrReservationOverlap, got %v", err)
	}

	// A window clear of the session's entry time succeeds.
	if err := svc.Reserve(ctx, "B1", vehicle.Plate, start.Add(2*time.Hour), start.Add(3*time.Hour)); err != nil {
		t.Fatalf("non-overlapping reserve: %v", err)
	}
}

func TestReserve_InvalidWindow(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")
	mustRegisterVehicle(t, store, "ABC123")

	now := time.Now()
	if err := svc.Reserve(ctx, "A1", "ABC123", now.Add(time.Hour), now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for inverted window, got %v", err)
	}
}

func TestCancelReservation_NotReserved(t *testing.T) {
	svc, _ := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")

	err := svc.CancelReservation(ctx, "A1")
	if !errors.Is(err, parking.ErrNotReserved) {
		t.Fatalf("expected ErrNotReserved, got %v", err)
	}
}

func TestCancelReservation_ClosesSessionAndClearsWindow(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	spot := mustCreateSpot(t, svc, "A1")
	vehicle := mustRegisterVehicle(t, store, "ABC123")

	start := time.Now()
	if err := svc.Reserve(ctx, "A1", "ABC123", start, start.Add(time.Hour)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.CancelReservation(ctx, "A1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := store.FindSpotByLabel(ctx, "A1")
	if got.State != parking.SpotAvailable {
		t.Errorf("state: got %s, want AVAILABLE", got.State)
	}
	if got.ReservationStart != nil || got.ReservationEnd != nil {
		t.Error("window not cleared after cancellation")
	}
	if open, _ := store.FindOpenSessionBySpot(ctx, spot.ID); open != nil {
		t.Error("reservation session left open after cancellation")
	}
	if open, _ := store.FindOpenSessionByVehicle(ctx, vehicle.ID); open != nil {
		t.Error("vehicle still bound to an open session")
	}
}

func TestCheckTimeout_ExpiryCancelsExactlyOnce(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A3")
	mustRegisterVehicle(t, store, "ABC123")

	start := time.Now()
	if err := svc.Reserve(ctx, "A3", "ABC123", start, start.Add(2*time.Hour)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Before expiry: a no-op every time.
	svc.now = func() time.Time { return start.Add(14 * time.Minute) }
	for i := 0; i < 3; i++ {
		timedOut, err := svc.CheckTimeout(ctx, "A3")
		if err != nil {
			t.Fatalf("CheckTimeout before expiry: %v", err)
		}
		if timedOut {
			t.Fatal("reservation expired before its 15-minute timeout")
		}
	}

	// 16 minutes in: cancelled exactly once.
	svc.now = func() time.Time { return start.Add(16 * time.Minute) }
	timedOut, err := svc.CheckTimeout(ctx, "A3")
	if err != nil {
		t.Fatalf("CheckTimeout after expiry: %v", err)
	}
	if !timedOut {
		t.Fatal("expected timeout cancellation")
	}

	spot, _ := store.FindSpotByLabel(ctx, "A3")
	if spot.State != parking.SpotAvailable {
		t.Errorf("state: got %s, want AVAILABLE", spot.State)
	}
	if spot.ReservationStart != nil {
		t.Error("window not cleared by timeout")
	}

	// Repeated calls after expiry stay no-ops.
	for i := 0; i < 3; i++ {
		timedOut, err := svc.CheckTimeout(ctx, "A3")
		if err != nil {
			t.Fatalf("CheckTimeout repeat: %v", err)
		}
		if timedOut {
			t.Fatal("timeout reported more than once")
		}
	}
}

func TestSweepTimeouts(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")
	mustCreateSpot(t, svc, "A2")
	mustCreateSpot(t, svc, "A3")
	mustRegisterVehicle(t, store, "ABC123")
	mustRegisterVehicle(t, store, "XYZ789")

	start := time.Now()
	if err := svc.Reserve(ctx, "A1", "ABC123", start, start.Add(2*time.Hour)); err != nil {
		t.Fatalf("reserve A1: %v", err)
	}
	// A2's reservation starts later, so it has not timed out yet.
	if err := svc.Reserve(ctx, "A2", "XYZ789", start.Add(10*time.Minute), start.Add(time.Hour)); err != nil {
		t.Fatalf("reserve A2: %v", err)
	}

	svc.now = func() time.Time { return start.Add(16 * time.Minute) }
	cancelled, err := svc.SweepTimeouts(ctx)
	if err != nil {
		t.Fatalf("SweepTimeouts: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0] != "A1" {
		t.Fatalf("cancelled: got %v, want [A1]", cancelled)
	}
}

func TestOccupy_SecondOccupyForSameVehicleFails(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")
	mustCreateSpot(t, svc, "A2")
	vehicle := mustRegisterVehicle(t, store, "ABC123")

	if _, _, err := svc.OccupyForVehicle(ctx, vehicle); err != nil {
		t.Fatalf("first occupy: %v", err)
	}
	if _, _, err := svc.OccupyForVehicle(ctx, vehicle); !errors.Is(err, ErrAlreadyParked) {
		t.Fatalf("expected ErrAlreadyParked, got %v", err)
	}
}

func TestOccupy_PicksFirstAvailableByLabel(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "B2")
	mustCreateSpot(t, svc, "A9")
	mustCreateSpot(t, svc, "A10")
	vehicle := mustRegisterVehicle(t, store, "ABC123")

	spot, _, err := svc.OccupyForVehicle(ctx, vehicle)
	if err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if spot.Label != "A10" {
		t.Errorf("allocated spot: got %s, want A10 (lowest label)", spot.Label)
	}
}

func TestOccupy_NoAvailableSpot(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	vehicle := mustRegisterVehicle(t, store, "ABC123")
	if _, _, err := svc.OccupyForVehicle(ctx, vehicle); !errors.Is(err, ErrNoAvailableSpot) {
		t.Fatalf("expected ErrNoAvailableSpot, got %v", err)
	}
}

func TestOccupy_ConvertsOwnReservation(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")
	mustCreateSpot(t, svc, "A2")
	vehicle := mustRegisterVehicle(t, store, "ABC123")

	start := time.Now()
	if err := svc.Reserve(ctx, "A2", "ABC123", start, start.Add(time.Hour)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	arrival := start.Add(5 * time.Minute)
	svc.now = func() time.Time { return arrival }

	spot, session, err := svc.OccupyForVehicle(ctx, vehicle)
	if err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if spot.Label != "A2" {
		t.Errorf("spot: got %s, want the reserved A2, not a fresh allocation", spot.Label)
	}
	if !session.IsReservation {
		t.Error("converted session lost its reservation snapshot")
	}
	if !session.EntryTime.Equal(arrival) {
		t.Errorf("entry time: got %v, want restamped to arrival %v", session.EntryTime, arrival)
	}

	got, _ := store.FindSpotByLabel(ctx, "A2")
	if got.State != parking.SpotOccupied {
		t.Errorf("state: got %s, want OCCUPIED", got.State)
	}
}

func TestVacate(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")
	vehicle := mustRegisterVehicle(t, store, "ABC123")

	if _, _, err := svc.VacateForVehicle(ctx, vehicle); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession before entry, got %v", err)
	}

	if _, _, err := svc.OccupyForVehicle(ctx, vehicle); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	spot, session, err := svc.VacateForVehicle(ctx, vehicle)
	if err != nil {
		t.Fatalf("vacate: %v", err)
	}
	if session.ExitTime == nil {
		t.Fatal("session not stamped with exit time")
	}
	if spot.State != parking.SpotAvailable {
		t.Errorf("state: got %s, want AVAILABLE", spot.State)
	}

	// Double exit must fail.
	if _, _, err := svc.VacateForVehicle(ctx, vehicle); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession on double exit, got %v", err)
	}
}

// Mutual exclusion: a reserved spot always carries a window; an
// available spot never does.
func TestSpotWindowInvariant(t *testing.T) {
	svc, store := newTestSpotService(t)
	ctx := context.Background()

	mustCreateSpot(t, svc, "A1")
	mustRegisterVehicle(t, store, "ABC123")

	check := func(stage string) {
		t.Helper()
		spot, _ := store.FindSpotByLabel(ctx, "A1")
		reserved := spot.State == parking.SpotReserved
		hasWindow := spot.ReservationStart != nil && spot.ReservationEnd != nil
		if reserved && !hasWindow {
			t.Errorf("%s: RESERVED spot with nil window", stage)
		}
		if spot.State == parking.SpotAvailable && (spot.ReservationStart != nil || spot.ReservationEnd != nil) {
			t.Errorf("%s: AVAILABLE spot with non-nil window", stage)
		}
	}

	check("created")
	start := time.Now()
	if err := svc.Reserve(ctx, "A1", "ABC123", start, start.Add(time.Hour)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	check("reserved")
	if err := svc.CancelReservation(ctx, "A1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	check("cancelled")
}
