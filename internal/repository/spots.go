package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type Spot struct {
	ID               int64  `gorm:"primaryKey"`
	Label            string `gorm:"not null;uniqueIndex"`
	State            string `gorm:"not null"`
	ReservationStart *time.Time
	ReservationEnd   *time.Time
	TimeoutMinutes   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Spot) TableName() string { return "parking_spots" }

func (s Spot) toDomain() *parking.ParkingSpot {
	return &parking.ParkingSpot{
		ID:               s.ID,
		Label:            s.Label,
		State:            parking.SpotState(s.State),
		ReservationStart: s.ReservationStart,
		ReservationEnd:   s.ReservationEnd,
		TimeoutMinutes:   s.TimeoutMinutes,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (r *Store) CreateSpot(ctx context.Context, spot *parking.ParkingSpot) error {
	row := Spot{
		Label:            spot.Label,
		State:            string(spot.State),
		ReservationStart: spot.ReservationStart,
		ReservationEnd:   spot.ReservationEnd,
		TimeoutMinutes:   spot.TimeoutMinutes,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := r.conn(ctx).WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	spot.ID = row.ID
	return nil
}

// SaveSpot persists the mutable state of a spot: its state and
// reservation window. Label and timeout are administrative fields.
func (r *Store) SaveSpot(ctx context.Context, spot *parking.ParkingSpot) error {
	return r.conn(ctx).WithContext(ctx).Model(&Spot{}).
		Where("id = ?", spot.ID).
		Updates(map[string]interface{}{
			"state":             string(spot.State),
			"reservation_start": spot.ReservationStart,
			"reservation_end":   spot.ReservationEnd,
			"updated_at":        time.Now(),
		}).Error
}

func (r *Store) FindSpotByLabel(ctx context.Context, label string) (*parking.ParkingSpot, error) {
	var row Spot
	err := r.conn(ctx).WithContext(ctx).Where("label = ?", label).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Store) FindSpotByID(ctx context.Context, id int64) (*parking.ParkingSpot, error) {
	var row Spot
	err := r.conn(ctx).WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// FirstAvailableSpot picks the available spot with the lowest label, so
// allocation order is stable across calls.
func (r *Store) FirstAvailableSpot(ctx context.Context) (*parking.ParkingSpot, error) {
	var row Spot
	err := r.conn(ctx).WithContext(ctx).
		Where("state = ?", string(parking.SpotAvailable)).
		Order("label ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Store) ListSpots(ctx context.Context) ([]parking.ParkingSpot, error) {
	return r.listSpots(r.conn(ctx).WithContext(ctx))
}

func (r *Store) ListSpotsByState(ctx context.Context, state parking.SpotState) ([]parking.ParkingSpot, error) {
	return r.listSpots(r.conn(ctx).WithContext(ctx).Where("state = ?", string(state)))
}

func (r *Store) listSpots(query *gorm.DB) ([]parking.ParkingSpot, error) {
	var rows []Spot
	if err := query.Order("label ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	spots := make([]parking.ParkingSpot, 0, len(rows))
	for _, row := range rows {
		spots = append(spots, *row.toDomain())
	}
	return spots, nil
}
