package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransactionTypeCheckout    = "checkout"
	TransactionTypeReturn      = "return"
	TransactionTypeRenewal     = "renewal"
	TransactionTypeReservation = "reservation"
)

// Transaction is the source of truth for due dates and return dates. A row is
// "open" while TransactionType is checkout and ReturnDate is null; once
// ReturnDate is set the row is immutable except for administrative fine
// correction.
type Transaction struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"book_id"`
	Book            *Book      `gorm:"constraint:OnDelete:RESTRICT;foreignKey:BookID;references:ID" json:"book,omitempty"`
	MemberID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"member_id"`
	Member          *Member    `gorm:"constraint:OnDelete:RESTRICT;foreignKey:MemberID;references:ID" json:"member,omitempty"`
	LibrarianID     *uuid.UUID `gorm:"type:uuid;index" json:"librarian_id,omitempty"`
	Librarian       *Profile   `gorm:"constraint:OnDelete:SET NULL;foreignKey:LibrarianID;references:ID" json:"librarian,omitempty"`
	TransactionType string     `gorm:"not null;column:transaction_type;index" json:"transaction_type"`
	CheckoutDate    time.Time  `gorm:"not null;column:checkout_date" json:"checkout_date"`
	DueDate         time.Time  `gorm:"not null;column:due_date;index" json:"due_date"`
	ReturnDate      *time.Time `gorm:"column:return_date" json:"return_date,omitempty"`
	FineAmount      *float64   `gorm:"column:fine_amount" json:"fine_amount,omitempty"`
	Notes           string     `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// IsOpen reports whether the loan is still out.
func (t *Transaction) IsOpen() bool {
	return t != nil && t.TransactionType == TransactionTypeCheckout && t.ReturnDate == nil
}
