package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReservationStatusActive    = "active"
	ReservationStatusFulfilled = "fulfilled"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusExpired   = "expired"
)

// Reservation is one entry in a book's FIFO hold queue. A row whose stored
// status is still active but whose expiry date has passed is treated as
// expired by every read until a sweep persists the transition.
type Reservation struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookID          uuid.UUID `gorm:"type:uuid;not null;index" json:"book_id"`
	Book            *Book     `gorm:"constraint:OnDelete:CASCADE;foreignKey:BookID;references:ID" json:"book,omitempty"`
	MemberID        uuid.UUID `gorm:"type:uuid;not null;index" json:"member_id"`
	Member          *Member   `gorm:"constraint:OnDelete:CASCADE;foreignKey:MemberID;references:ID" json:"member,omitempty"`
	ReservationDate time.Time `gorm:"not null;default:now();column:reservation_date" json:"reservation_date"`
	ExpiryDate      time.Time `gorm:"not null;column:expiry_date" json:"expiry_date"`
	Status          string    `gorm:"not null;default:'active';column:status;index" json:"status"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservation"
}

// EffectiveStatus folds lazy expiry into the stored status.
func (r *Reservation) EffectiveStatus(now time.Time) string {
	if r.Status == ReservationStatusActive && now.After(r.ExpiryDate) {
		return ReservationStatusExpired
	}
	return r.Status
}
