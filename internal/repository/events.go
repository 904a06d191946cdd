package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"parking-service/internal/domain/parking"
)

type GateEvent struct {
	ID         int64  `gorm:"primaryKey"`
	Gate       string `gorm:"not null"`
	Plate      *string
	Confidence *float64
	Success    bool
	Message    string
	RawPayload datatypes.JSON `gorm:"type:jsonb"`
	EventTime  time.Time      `gorm:"not null"`
	CreatedAt  time.Time
}

func (e GateEvent) toDomain() *parking.GateEvent {
	out := &parking.GateEvent{
		ID:         e.ID,
		Gate:       e.Gate,
		Success:    e.Success,
		Message:    e.Message,
		RawPayload: []byte(e.RawPayload),
		EventTime:  e.EventTime,
	}
	if e.Plate != nil {
		out.Plate = *e.Plate
	}
	if e.Confidence != nil {
		out.Confidence = *e.Confidence
	}
	return out
}

func (r *Store) CreateGateEvent(ctx context.Context, event *parking.GateEvent) error {
	row := GateEvent{
		Gate:      event.Gate,
		Success:   event.Success,
		Message:   event.Message,
		EventTime: event.EventTime,
		CreatedAt: time.Now(),
	}
	if event.Plate != "" {
		row.Plate = &event.Plate
	}
	if event.Confidence != 0 {
		row.Confidence = &event.Confidence
	}
	if len(event.RawPayload) > 0 {
		row.RawPayload = datatypes.JSON(event.RawPayload)
	}

	if err := r.conn(ctx).WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	event.ID = row.ID
	return nil
}

func (r *Store) FindGateEvents(ctx context.Context, plate *string, from, to *time.Time, limit, offset int) ([]parking.GateEvent, error) {
	query := r.conn(ctx).WithContext(ctx).Model(&GateEvent{})

	if plate != nil {
		query = query.Where("plate = ?", *plate)
	}
	if from != nil {
		query = query.Where("event_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("event_time <= ?", *to)
	}

	query = query.Order("event_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []GateEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]parking.GateEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, *row.toDomain())
	}
	return events, nil
}

// DeleteOldGateEvents removes audit events older than the given number
// of days and returns how many were deleted.
func (r *Store) DeleteOldGateEvents(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.conn(ctx).WithContext(ctx).
		Where("event_time < ?", cutoff).
		Delete(&GateEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old gate events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
