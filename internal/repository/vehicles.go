package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type Vehicle struct {
	ID        int64  `gorm:"primaryKey"`
	Plate     string `gorm:"not null;uniqueIndex"`
	Owner     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (v Vehicle) toDomain() *parking.Vehicle {
	out := &parking.Vehicle{
		ID:        v.ID,
		Plate:     v.Plate,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	if v.Owner != nil {
		out.Owner = *v.Owner
	}
	if v.Phone != nil {
		out.Phone = *v.Phone
	}
	return out
}

func (r *Store) CreateVehicle(ctx context.Context, vehicle *parking.Vehicle) error {
	row := Vehicle{
		Plate:     vehicle.Plate,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if vehicle.Owner != "" {
		row.Owner = &vehicle.Owner
	}
	if vehicle.Phone != "" {
		row.Phone = &vehicle.Phone
	}
	if err := r.conn(ctx).WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	vehicle.ID = row.ID
	return nil
}

// FindVehicleByPlate looks a vehicle up by its normalized plate.
// Returns (nil, nil) when the plate is not registered.
func (r *Store) FindVehicleByPlate(ctx context.Context, plate string) (*parking.Vehicle, error) {
	var row Vehicle
	err := r.conn(ctx).WithContext(ctx).Where("plate = ?", plate).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Store) ListVehicles(ctx context.Context, plateFilter string) ([]parking.Vehicle, error) {
	query := r.conn(ctx).WithContext(ctx).Model(&Vehicle{})
	if plateFilter != "" {
		query = query.Where("plate LIKE ?", "%"+plateFilter+"%")
	}

	var rows []Vehicle
	if err := query.Order("plate ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	vehicles := make([]parking.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicles = append(vehicles, *row.toDomain())
	}
	return vehicles, nil
}
