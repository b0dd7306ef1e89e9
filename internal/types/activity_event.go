package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActivityCheckout     = "checkout"
	ActivityReturn       = "return"
	ActivityReservation  = "reservation"
	ActivityRegistration = "registration"
)

// ActivityEvent feeds the dashboard's recent-activity list. Append-only;
// never consulted for a business decision.
type ActivityEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Type      string         `gorm:"not null;column:type;index" json:"type"`
	BookID    *uuid.UUID     `gorm:"type:uuid;index" json:"book_id,omitempty"`
	Book      *Book          `gorm:"constraint:OnDelete:SET NULL;foreignKey:BookID;references:ID" json:"book,omitempty"`
	MemberID  *uuid.UUID     `gorm:"type:uuid;index" json:"member_id,omitempty"`
	Member    *Member        `gorm:"constraint:OnDelete:SET NULL;foreignKey:MemberID;references:ID" json:"member,omitempty"`
	Data      datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (ActivityEvent) TableName() string {
	return "activity_event"
}
