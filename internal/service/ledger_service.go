package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/domain/parking"
	"parking-service/internal/utils"
)

// LedgerService covers the bookkeeping surface around the gate: the
// vehicle registry, session queries, payment records and the gate
// event audit trail. It contains no charging logic; amounts come from
// the caller.
type LedgerService struct {
	registry VehicleRegistry
	ledger   Ledger
	payments PaymentStore
	events   GateEventStore
	log      zerolog.Logger
}

func NewLedgerService(registry VehicleRegistry, ledger Ledger, payments PaymentStore, events GateEventStore, log zerolog.Logger) *LedgerService {
	return &LedgerService{
		registry: registry,
		ledger:   ledger,
		payments: payments,
		events:   events,
		log:      log,
	}
}

func (s *LedgerService) RegisterVehicle(ctx context.Context, plate, owner, phone string) (*parking.Vehicle, error) {
	normalized := utils.NormalizePlate(plate)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	existing, err := s.registry.FindVehicleByPlate(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("vehicle lookup: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: vehicle %s already registered", ErrInvalidInput, normalized)
	}

	vehicle := &parking.Vehicle{
		Plate: normalized,
		Owner: owner,
		Phone: phone,
	}
	if err := s.registry.CreateVehicle(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}

	s.log.Info().Str("plate", normalized).Msg("vehicle registered")
	return vehicle, nil
}

func (s *LedgerService) FindVehicles(ctx context.Context, plateQuery string) ([]parking.Vehicle, error) {
	return s.registry.ListVehicles(ctx, utils.NormalizePlate(plateQuery))
}

func (s *LedgerService) ActiveSessions(ctx context.Context) ([]parking.ParkingSession, error) {
	return s.ledger.ListActiveSessions(ctx)
}

func (s *LedgerService) Reservations(ctx context.Context, future bool) ([]parking.ParkingSession, error) {
	return s.ledger.ListReservations(ctx, time.Now(), future)
}

func (s *LedgerService) CreatePayment(ctx context.Context, sessionID int64, amount float64) (*parking.Payment, error) {
	if sessionID <= 0 || amount <= 0 {
		return nil, fmt.Errorf("%w: session id and positive amount are required", ErrInvalidInput)
	}

	payment := &parking.Payment{
		SessionID: sessionID,
		Amount:    amount,
		Status:    parking.PaymentPending,
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

// CompletePayment marks a pending payment as paid. Completing an
// already-completed payment is rejected and leaves the record intact.
func (s *LedgerService) CompletePayment(ctx context.Context, id int64) (*parking.Payment, error) {
	payment, err := s.payments.FindPaymentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: payment %d", ErrNotFound, id)
	}
	if payment.Status == parking.PaymentCompleted {
		return nil, fmt.Errorf("%w: payment %d", ErrPaymentCompleted, id)
	}

	now := time.Now()
	payment.Status = parking.PaymentCompleted
	payment.PaymentTime = &now
	if err := s.payments.SavePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.log.Info().Int64("payment_id", id).Float64("amount", payment.Amount).Msg("payment completed")
	return payment, nil
}

func (s *LedgerService) GateEvents(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]parking.GateEvent, error) {
	var plate *string
	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			plate = &normalized
		}
	}

	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	return s.events.FindGateEvents(ctx, plate, fromTime, toTime, limit, offset)
}

// CleanupOldEvents deletes gate events older than the given number of
// days.
func (s *LedgerService) CleanupOldEvents(ctx context.Context, days int) (int64, error) {
	deleted, err := s.events.DeleteOldGateEvents(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old gate events")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old gate events")
	}
	return deleted, nil
}
