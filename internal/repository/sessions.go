package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type Session struct {
	ID               int64 `gorm:"primaryKey"`
	VehicleID        int64 `gorm:"not null"`
	SpotID           int64 `gorm:"not null"`
	EntryTime        time.Time
	ExitTime         *time.Time
	IsReservation    bool
	ReservationStart *time.Time
	ReservationEnd   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Session) TableName() string { return "parking_sessions" }

func (s Session) toDomain() *parking.ParkingSession {
	return &parking.ParkingSession{
		ID:               s.ID,
		VehicleID:        s.VehicleID,
		SpotID:           s.SpotID,
		EntryTime:        s.EntryTime,
		ExitTime:         s.ExitTime,
		IsReservation:    s.IsReservation,
		ReservationStart: s.ReservationStart,
		ReservationEnd:   s.ReservationEnd,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (r *Store) CreateSession(ctx context.Context, session *parking.ParkingSession) error {
	row := Session{
		VehicleID:        session.VehicleID,
		SpotID:           session.SpotID,
		EntryTime:        session.EntryTime,
		ExitTime:         session.ExitTime,
		IsReservation:    session.IsReservation,
		ReservationStart: session.ReservationStart,
		ReservationEnd:   session.ReservationEnd,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := r.conn(ctx).WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	session.ID = row.ID
	return nil
}

// RestampSessionEntry moves an open reservation session's entry time to
// the actual arrival instant when the reservation converts into a stay.
func (r *Store) RestampSessionEntry(ctx context.Context, sessionID int64, entryTime time.Time) error {
	return r.conn(ctx).WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"entry_time": entryTime,
			"updated_at": time.Now(),
		}).Error
}

func (r *Store) CloseSession(ctx context.Context, sessionID int64, exitTime time.Time) error {
	return r.conn(ctx).WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"exit_time":  exitTime,
			"updated_at": time.Now(),
		}).Error
}

// FindOpenSessionByVehicle returns the vehicle's open session, or
// (nil, nil) when it has none.
func (r *Store) FindOpenSessionByVehicle(ctx context.Context, vehicleID int64) (*parking.ParkingSession, error) {
	var row Session
	err := r.conn(ctx).WithContext(ctx).
		Where("vehicle_id = ? AND exit_time IS NULL", vehicleID).
		Order("entry_time DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Store) FindOpenSessionBySpot(ctx context.Context, spotID int64) (*parking.ParkingSession, error) {
	var row Session
	err := r.conn(ctx).WithContext(ctx).
		Where("spot_id = ? AND exit_time IS NULL", spotID).
		Order("entry_time DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// HasSessionEntryWithin reports whether any open session on the spot
// has its entry time inside [start, end], bounds inclusive. This is the
// reservation overlap test.
func (r *Store) HasSessionEntryWithin(ctx context.Context, spotID int64, start, end time.Time) (bool, error) {
	var count int64
	err := r.conn(ctx).WithContext(ctx).Model(&Session{}).
		Where("spot_id = ? AND exit_time IS NULL", spotID).
		Where("entry_time >= ? AND entry_time <= ?", start, end).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Store) ListActiveSessions(ctx context.Context) ([]parking.ParkingSession, error) {
	return r.listSessions(r.conn(ctx).WithContext(ctx).
		Where("exit_time IS NULL AND is_reservation = false"))
}

// ListReservations returns open reservation sessions. With future=true
// only windows that have not started yet; otherwise windows containing
// now.
func (r *Store) ListReservations(ctx context.Context, now time.Time, future bool) ([]parking.ParkingSession, error) {
	query := r.conn(ctx).WithContext(ctx).
		Where("exit_time IS NULL AND is_reservation = true")
	if future {
		query = query.Where("reservation_start > ?", now)
	} else {
		query = query.Where("reservation_start <= ? AND reservation_end >= ?", now, now)
	}
	return r.listSessions(query)
}

func (r *Store) listSessions(query *gorm.DB) ([]parking.ParkingSession, error) {
	var rows []Session
	if err := query.Order("entry_time DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	sessions := make([]parking.ParkingSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, *row.toDomain())
	}
	return sessions, nil
}
