package parking

import (
	"errors"
	"time"
)

// SpotState is the single source of truth for a spot's lifecycle. The
// occupied/reserved flag pair of earlier revisions allowed invalid
// combinations; the enum does not.
type SpotState string

const (
	SpotAvailable SpotState = "AVAILABLE"
	SpotReserved  SpotState = "RESERVED"
	SpotOccupied  SpotState = "OCCUPIED"
)

// DefaultReservationTimeoutMinutes applies to spots created without an
// explicit timeout.
const DefaultReservationTimeoutMinutes = 15

var (
	ErrSpotUnavailable = errors.New("spot is not available")
	ErrNotReserved     = errors.New("spot is not reserved")
	ErrNotOccupied     = errors.New("spot is not occupied")
	ErrInvalidWindow   = errors.New("invalid reservation window")
)

type ParkingSpot struct {
	ID               int64
	Label            string
	State            SpotState
	ReservationStart *time.Time
	ReservationEnd   *time.Time
	TimeoutMinutes   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *ParkingSpot) Available() bool {
	return s.State == SpotAvailable
}

// Reserve flips an available spot to RESERVED and stores the window.
// The [start, end) window must be well formed; no mutation on failure.
func (s *ParkingSpot) Reserve(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidWindow
	}
	if s.State != SpotAvailable {
		return ErrSpotUnavailable
	}
	s.State = SpotReserved
	s.ReservationStart = &start
	s.ReservationEnd = &end
	return nil
}

// CancelReservation returns a reserved spot to AVAILABLE and clears the
// window. Valid only from RESERVED.
func (s *ParkingSpot) CancelReservation() error {
	if s.State != SpotReserved {
		return ErrNotReserved
	}
	s.State = SpotAvailable
	s.ReservationStart = nil
	s.ReservationEnd = nil
	return nil
}

// TimedOut reports whether a reserved spot's hold has expired at the
// given instant. Always false outside RESERVED.
func (s *ParkingSpot) TimedOut(now time.Time) bool {
	if s.State != SpotReserved || s.ReservationStart == nil {
		return false
	}
	deadline := s.ReservationStart.Add(s.ReservationTimeout())
	return now.After(deadline)
}

func (s *ParkingSpot) ReservationTimeout() time.Duration {
	minutes := s.TimeoutMinutes
	if minutes <= 0 {
		minutes = DefaultReservationTimeoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Occupy flips the spot to OCCUPIED. Valid from AVAILABLE, or from
// RESERVED when the entering vehicle holds the reservation (the caller
// checks the binding; this transition only guards the state).
func (s *ParkingSpot) Occupy() error {
	if s.State == SpotOccupied {
		return ErrSpotUnavailable
	}
	s.State = SpotOccupied
	return nil
}

// Vacate returns an occupied spot to AVAILABLE and clears any window
// left over from a converted reservation.
func (s *ParkingSpot) Vacate() error {
	if s.State != SpotOccupied {
		return ErrNotOccupied
	}
	s.State = SpotAvailable
	s.ReservationStart = nil
	s.ReservationEnd = nil
	return nil
}

type Vehicle struct {
	ID        int64
	Plate     string
	Owner     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParkingSession is one vehicle's stay (or reservation) at one spot. A
// session is open while ExitTime is nil; at most one session per
// vehicle may be open at a time.
type ParkingSession struct {
	ID               int64
	VehicleID        int64
	SpotID           int64
	EntryTime        time.Time
	ExitTime         *time.Time
	IsReservation    bool
	ReservationStart *time.Time
	ReservationEnd   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *ParkingSession) Open() bool {
	return s.ExitTime == nil
}

// Duration is the elapsed stay, using now for still-open sessions.
func (s *ParkingSession) Duration(now time.Time) time.Duration {
	if s.ExitTime != nil {
		return s.ExitTime.Sub(s.EntryTime)
	}
	return now.Sub(s.EntryTime)
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID          int64
	SessionID   int64
	Amount      float64
	Status      PaymentStatus
	PaymentTime *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecognitionResult is the outcome of one plate reading. Plate is empty
// when no candidate passed the confidence threshold. Ephemeral: produced
// and consumed within a single gate operation, never persisted as-is.
type RecognitionResult struct {
	Plate      string
	Confidence float64
	Box        *Box
	RawPayload []byte
}

func (r RecognitionResult) Found() bool {
	return r.Plate != ""
}

// Gate direction for audit events.
const (
	GateEntry = "entry"
	GateExit  = "exit"
)

// GateEvent is the audit record of one entry/exit attempt, successful
// or not. RawPayload carries the recognition engine's output verbatim.
type GateEvent struct {
	ID         int64
	Gate       string
	Plate      string
	Confidence float64
	Success    bool
	Message    string
	RawPayload []byte
	EventTime  time.Time
}

// Box is a plate candidate's bounding rectangle in frame coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}
