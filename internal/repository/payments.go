package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type Payment struct {
	ID          int64 `gorm:"primaryKey"`
	SessionID   int64 `gorm:"not null"`
	Amount      float64
	Status      string `gorm:"not null"`
	PaymentTime *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Payment) toDomain() *parking.Payment {
	return &parking.Payment{
		ID:          p.ID,
		SessionID:   p.SessionID,
		Amount:      p.Amount,
		Status:      parking.PaymentStatus(p.Status),
		PaymentTime: p.PaymentTime,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (r *Store) CreatePayment(ctx context.Context, payment *parking.Payment) error {
	row := Payment{
		SessionID: payment.SessionID,
		Amount:    payment.Amount,
		Status:    string(payment.Status),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.conn(ctx).WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	payment.ID = row.ID
	return nil
}

func (r *Store) FindPaymentByID(ctx context.Context, id int64) (*parking.Payment, error) {
	var row Payment
	err := r.conn(ctx).WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Store) SavePayment(ctx context.Context, payment *parking.Payment) error {
	return r.conn(ctx).WithContext(ctx).Model(&Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"status":       string(payment.Status),
			"payment_time": payment.PaymentTime,
			"updated_at":   time.Now(),
		}).Error
}
