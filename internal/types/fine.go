package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	FineStatusPending = "pending"
	FineStatusPaid    = "paid"
	FineStatusWaived  = "waived"
)

// Fine records money owed for a late return (or a manual assessment).
// Settlement must decrement the owning Member's fine balance by the same
// amount in the same database transaction.
type Fine struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MemberID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"member_id"`
	Member        *Member      `gorm:"constraint:OnDelete:CASCADE;foreignKey:MemberID;references:ID" json:"member,omitempty"`
	TransactionID *uuid.UUID   `gorm:"type:uuid;index" json:"transaction_id,omitempty"`
	Transaction   *Transaction `gorm:"constraint:OnDelete:SET NULL;foreignKey:TransactionID;references:ID" json:"transaction,omitempty"`
	Amount        float64      `gorm:"not null;column:amount" json:"amount"`
	Reason        string       `gorm:"not null;column:reason" json:"reason"`
	Status        string       `gorm:"not null;default:'pending';column:status;index" json:"status"`
	CreatedAt     time.Time    `gorm:"not null;default:now()" json:"created_at"`
	PaidAt        *time.Time   `gorm:"column:paid_at" json:"paid_at,omitempty"`
}

func (Fine) TableName() string {
	return "fine"
}
