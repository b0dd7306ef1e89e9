package types

import (
	"time"

	"github.com/google/uuid"
)

type Author struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string     `gorm:"not null;column:name" json:"name"`
	Bio         string     `gorm:"column:bio" json:"bio,omitempty"`
	Nationality string     `gorm:"column:nationality" json:"nationality,omitempty"`
	BirthDate   *time.Time `gorm:"column:birth_date" json:"birth_date,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (Author) TableName() string {
	return "author"
}

type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;column:name" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Category) TableName() string {
	return "category"
}
