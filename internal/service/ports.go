package service

import (
	"context"
	"encoding/json"
	"time"

	"parking-service/internal/domain/parking"
)

// Persistence ports. The gorm Store satisfies all of them; tests use
// in-memory fakes.

type SpotStore interface {
	CreateSpot(ctx context.Context, spot *parking.ParkingSpot) error
	SaveSpot(ctx context.Context, spot *parking.ParkingSpot) error
	FindSpotByLabel(ctx context.Context, label string) (*parking.ParkingSpot, error)
	FindSpotByID(ctx context.Context, id int64) (*parking.ParkingSpot, error)
	FirstAvailableSpot(ctx context.Context) (*parking.ParkingSpot, error)
	ListSpots(ctx context.Context) ([]parking.ParkingSpot, error)
	ListSpotsByState(ctx context.Context, state parking.SpotState) ([]parking.ParkingSpot, error)
}

type Ledger interface {
	CreateSession(ctx context.Context, session *parking.ParkingSession) error
	RestampSessionEntry(ctx context.Context, sessionID int64, entryTime time.Time) error
	CloseSession(ctx context.Context, sessionID int64, exitTime time.Time) error
	FindOpenSessionByVehicle(ctx context.Context, vehicleID int64) (*parking.ParkingSession, error)
	FindOpenSessionBySpot(ctx context.Context, spotID int64) (*parking.ParkingSession, error)
	HasSessionEntryWithin(ctx context.Context, spotID int64, start, end time.Time) (bool, error)
	ListActiveSessions(ctx context.Context) ([]parking.ParkingSession, error)
	ListReservations(ctx context.Context, now time.Time, future bool) ([]parking.ParkingSession, error)
}

type VehicleRegistry interface {
	CreateVehicle(ctx context.Context, vehicle *parking.Vehicle) error
	FindVehicleByPlate(ctx context.Context, plate string) (*parking.Vehicle, error)
	ListVehicles(ctx context.Context, plateFilter string) ([]parking.Vehicle, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *parking.Payment) error
	FindPaymentByID(ctx context.Context, id int64) (*parking.Payment, error)
	SavePayment(ctx context.Context, payment *parking.Payment) error
}

// Transactor runs fn atomically with respect to other writes. Store
// methods called with the context fn receives join the transaction.
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

type GateEventStore interface {
	CreateGateEvent(ctx context.Context, event *parking.GateEvent) error
	FindGateEvents(ctx context.Context, plate *string, from, to *time.Time, limit, offset int) ([]parking.GateEvent, error)
	DeleteOldGateEvents(ctx context.Context, days int) (int64, error)
}

// Device ports, satisfied by internal/camera, internal/recognition and
// internal/barrier.

type FrameSource interface {
	Connect() bool
	Frame() ([]byte, bool)
	Release()
}

// FrameSourceFactory yields a fresh FrameSource for one gate
// operation. A source's connection is scoped to a single call:
// acquired at the start, released on every exit path, never shared
// between concurrent requests.
type FrameSourceFactory func() FrameSource

type Recognizer interface {
	Recognize(ctx context.Context, jpeg []byte) (parking.RecognitionResult, error)
}

type BarrierController interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Status(ctx context.Context) (json.RawMessage, error)
}
