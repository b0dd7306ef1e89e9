package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleMember    = "member"
)

type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string    `gorm:"not null;column:password" json:"-"`
	FullName  string    `gorm:"not null;column:full_name" json:"full_name"`
	Phone     string    `gorm:"column:phone" json:"phone,omitempty"`
	Address   string    `gorm:"column:address" json:"address,omitempty"`
	AvatarURL string    `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	Role      string    `gorm:"not null;default:'member';column:role" json:"role"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profile"
}

const (
	MemberStatusActive    = "active"
	MemberStatusSuspended = "suspended"
	MemberStatusExpired   = "expired"
)

// Member owns the borrowing ledger for one person: the loan-slot counter
// (CurrentBooksIssued, bounded by MaxBooksAllowed) and the accrued fine
// balance. Both are mutated only through MemberRepo's conditional updates.
type Member struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProfileID          uuid.UUID `gorm:"type:uuid;not null;index" json:"profile_id"`
	Profile            *Profile  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProfileID;references:ID" json:"profile,omitempty"`
	MembershipNumber   string    `gorm:"uniqueIndex;not null;column:membership_number" json:"membership_number"`
	MembershipType     string    `gorm:"column:membership_type" json:"membership_type,omitempty"`
	Status             string    `gorm:"not null;default:'active';column:status" json:"status"`
	MaxBooksAllowed    int       `gorm:"not null;default:5;column:max_books_allowed" json:"max_books_allowed"`
	CurrentBooksIssued int       `gorm:"not null;default:0;column:current_books_issued" json:"current_books_issued"`
	FineAmount         float64   `gorm:"not null;default:0;column:fine_amount" json:"fine_amount"`
	JoinDate           time.Time `gorm:"not null;default:now();column:join_date" json:"join_date"`
	ExpiryDate         time.Time `gorm:"not null;column:expiry_date" json:"expiry_date"`
	CreatedAt          time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Member) TableName() string {
	return "member"
}
