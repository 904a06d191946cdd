package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/domain/parking"
)

// SpotService is the reservation/occupancy state machine. It is the
// only writer of spot state: every transition's precondition check and
// mutation run under the lot lock, so concurrent requests touching the
// same spot or vehicle are serialized. A transition's session and spot
// writes are committed in one transaction.
type SpotService struct {
	spots    SpotStore
	ledger   Ledger
	registry VehicleRegistry
	tx       Transactor

	mu  sync.Mutex // lot-level single-writer lock
	now func() time.Time
	log zerolog.Logger

	defaultTimeoutMinutes int
}

func NewSpotService(spots SpotStore, ledger Ledger, registry VehicleRegistry, tx Transactor, defaultTimeoutMinutes int, log zerolog.Logger) *SpotService {
	if defaultTimeoutMinutes <= 0 {
		defaultTimeoutMinutes = parking.DefaultReservationTimeoutMinutes
	}
	return &SpotService{
		spots:                 spots,
		ledger:                ledger,
		registry:              registry,
		tx:                    tx,
		now:                   time.Now,
		log:                   log,
		defaultTimeoutMinutes: defaultTimeoutMinutes,
	}
}

func (s *SpotService) CreateSpot(ctx context.Context, label string, timeoutMinutes int) (*parking.ParkingSpot, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	if timeoutMinutes <= 0 {
		timeoutMinutes = s.defaultTimeoutMinutes
	}

	spot := &parking.ParkingSpot{
		Label:          label,
		State:          parking.SpotAvailable,
		TimeoutMinutes: timeoutMinutes,
	}
	if err := s.spots.CreateSpot(ctx, spot); err != nil {
		return nil, fmt.Errorf("create spot: %w", err)
	}
	s.log.Info().Str("spot", label).Msg("created parking spot")
	return spot, nil
}

func (s *SpotService) ListSpots(ctx context.Context) ([]parking.ParkingSpot, error) {
	return s.spots.ListSpots(ctx)
}

func (s *SpotService) ListAvailableSpots(ctx context.Context) ([]parking.ParkingSpot, error) {
	return s.spots.ListSpotsByState(ctx, parking.SpotAvailable)
}

// Reserve books the spot for the vehicle over [start, end). It fails
// without mutation when the spot is not available, or when any open
// session on the spot has its entry time inside the window.
func (s *SpotService) Reserve(ctx context.Context, label, plate string, start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: reservation start must precede end", ErrInvalidInput)
	}

	vehicle, err := s.registry.FindVehicleByPlate(ctx, plate)
	if err != nil {
		return fmt.Errorf("vehicle lookup: %w", err)
	}
	if vehicle == nil {
		return fmt.Errorf("%w: %s", ErrVehicleNotRegistered, plate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spot, err := s.findSpot(ctx, label)
	if err != nil {
		return err
	}
	if !spot.Available() {
		return fmt.Errorf("%w: spot %s", parking.ErrSpotUnavailable, label)
	}

	overlaps, err := s.ledger.HasSessionEntryWithin(ctx, spot.ID, start, end)
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	if overlaps {
		return fmt.Errorf("%w: spot %s", ErrReservationOverlap, label)
	}

	if err := spot.Reserve(start, end); err != nil {
		return err
	}

	session := &parking.ParkingSession{
		VehicleID:        vehicle.ID,
		SpotID:           spot.ID,
		EntryTime:        start,
		IsReservation:    true,
		ReservationStart: &start,
		ReservationEnd:   &end,
	}
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.ledger.CreateSession(ctx, session); err != nil {
			return fmt.Errorf("create reservation session: %w", err)
		}
		if err := s.spots.SaveSpot(ctx, spot); err != nil {
			return fmt.Errorf("save spot: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("spot", label).
		Str("plate", vehicle.Plate).
		Time("start", start).
		Time("end", end).
		Msg("spot reserved")
	return nil
}

// CancelReservation reverts a reserved spot to available and closes its
// reservation session. Cancelling a non-reserved spot is a reported
// error, not a crash.
func (s *SpotService) CancelReservation(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(ctx, label)
}

func (s *SpotService) cancelLocked(ctx context.Context, label string) error {
	spot, err := s.findSpot(ctx, label)
	if err != nil {
		return err
	}
	if err := spot.CancelReservation(); err != nil {
		return fmt.Errorf("%w: spot %s", err, label)
	}

	session, err := s.ledger.FindOpenSessionBySpot(ctx, spot.ID)
	if err != nil {
		return fmt.Errorf("find reservation session: %w", err)
	}

	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if session != nil && session.IsReservation {
			if err := s.ledger.CloseSession(ctx, session.ID, s.now()); err != nil {
				return fmt.Errorf("close reservation session: %w", err)
			}
		}
		if err := s.spots.SaveSpot(ctx, spot); err != nil {
			return fmt.Errorf("save spot: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("spot", label).Msg("reservation cancelled")
	return nil
}

// CheckTimeout auto-cancels the spot's reservation once its hold has
// expired. It reports true exactly once per expiry; on a non-reserved
// or not-yet-expired spot it is a no-op.
func (s *SpotService) CheckTimeout(ctx context.Context, label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spot, err := s.findSpot(ctx, label)
	if err != nil {
		return false, err
	}
	if !spot.TimedOut(s.now()) {
		return false, nil
	}

	if err := s.cancelLocked(ctx, label); err != nil {
		return false, err
	}
	s.log.Info().Str("spot", label).Msg("reservation timed out")
	return true, nil
}

// SweepTimeouts runs CheckTimeout across every reserved spot and
// returns the labels whose reservations were cancelled. Per-spot
// failures are logged and do not stop the sweep.
func (s *SpotService) SweepTimeouts(ctx context.Context) ([]string, error) {
	reserved, err := s.spots.ListSpotsByState(ctx, parking.SpotReserved)
	if err != nil {
		return nil, fmt.Errorf("list reserved spots: %w", err)
	}

	var cancelled []string
	for _, spot := range reserved {
		timedOut, err := s.CheckTimeout(ctx, spot.Label)
		if err != nil {
			s.log.Error().Err(err).Str("spot", spot.Label).Msg("timeout check failed")
			continue
		}
		if timedOut {
			cancelled = append(cancelled, spot.Label)
		}
	}
	return cancelled, nil
}

// OccupyForVehicle admits the vehicle: it converts the vehicle's own
// reservation when one is pending, otherwise allocates the first
// available spot by label and opens a new session.
func (s *SpotService) OccupyForVehicle(ctx context.Context, vehicle *parking.Vehicle) (*parking.ParkingSpot, *parking.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	open, err := s.ledger.FindOpenSessionByVehicle(ctx, vehicle.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("find open session: %w", err)
	}
	if open != nil {
		return s.convertReservation(ctx, vehicle, open, now)
	}

	spot, err := s.spots.FirstAvailableSpot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("find available spot: %w", err)
	}
	if spot == nil {
		return nil, nil, ErrNoAvailableSpot
	}

	if err := spot.Occupy(); err != nil {
		return nil, nil, err
	}
	session := &parking.ParkingSession{
		VehicleID: vehicle.ID,
		SpotID:    spot.ID,
		EntryTime: now,
	}
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.ledger.CreateSession(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := s.spots.SaveSpot(ctx, spot); err != nil {
			return fmt.Errorf("save spot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("spot", spot.Label).
		Str("plate", vehicle.Plate).
		Int64("session_id", session.ID).
		Msg("vehicle occupied spot")
	return spot, session, nil
}

// convertReservation turns the vehicle's pending reservation into an
// active stay: the spot flips RESERVED -> OCCUPIED and the session's
// entry time is restamped to the actual arrival.
func (s *SpotService) convertReservation(ctx context.Context, vehicle *parking.Vehicle, open *parking.ParkingSession, now time.Time) (*parking.ParkingSpot, *parking.ParkingSession, error) {
	spot, err := s.findSpotByID(ctx, open.SpotID)
	if err != nil {
		return nil, nil, err
	}
	if !open.IsReservation || spot.State != parking.SpotReserved {
		return nil, nil, fmt.Errorf("%w: %s", ErrAlreadyParked, vehicle.Plate)
	}

	if err := spot.Occupy(); err != nil {
		return nil, nil, err
	}
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.ledger.RestampSessionEntry(ctx, open.ID, now); err != nil {
			return fmt.Errorf("restamp session entry: %w", err)
		}
		if err := s.spots.SaveSpot(ctx, spot); err != nil {
			return fmt.Errorf("save spot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	open.EntryTime = now

	s.log.Info().
		Str("spot", spot.Label).
		Str("plate", vehicle.Plate).
		Int64("session_id", open.ID).
		Msg("reservation converted to stay")
	return spot, open, nil
}

// VacateForVehicle closes the vehicle's open session and returns its
// spot to available.
func (s *SpotService) VacateForVehicle(ctx context.Context, vehicle *parking.Vehicle) (*parking.ParkingSpot, *parking.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open, err := s.ledger.FindOpenSessionByVehicle(ctx, vehicle.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("find open session: %w", err)
	}
	if open == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoOpenSession, vehicle.Plate)
	}

	spot, err := s.findSpotByID(ctx, open.SpotID)
	if err != nil {
		return nil, nil, err
	}
	if err := spot.Vacate(); err != nil {
		return nil, nil, err
	}

	exitTime := s.now()
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.ledger.CloseSession(ctx, open.ID, exitTime); err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		if err := s.spots.SaveSpot(ctx, spot); err != nil {
			return fmt.Errorf("save spot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	open.ExitTime = &exitTime

	s.log.Info().
		Str("spot", spot.Label).
		Str("plate", vehicle.Plate).
		Int64("session_id", open.ID).
		Dur("duration", open.Duration(exitTime)).
		Msg("vehicle vacated spot")
	return spot, open, nil
}

func (s *SpotService) findSpot(ctx context.Context, label string) (*parking.ParkingSpot, error) {
	spot, err := s.spots.FindSpotByLabel(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("find spot: %w", err)
	}
	if spot == nil {
		return nil, fmt.Errorf("%w: spot %s", ErrNotFound, label)
	}
	return spot, nil
}

func (s *SpotService) findSpotByID(ctx context.Context, id int64) (*parking.ParkingSpot, error) {
	spot, err := s.spots.FindSpotByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find spot: %w", err)
	}
	if spot == nil {
		return nil, fmt.Errorf("%w: spot id %d", ErrNotFound, id)
	}
	return spot, nil
}
