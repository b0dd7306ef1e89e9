package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	BookStatusAvailable   = "available"
	BookStatusCheckedOut  = "checked_out"
	BookStatusReserved    = "reserved"
	BookStatusMaintenance = "maintenance"
	BookStatusLost        = "lost"
)

// Book tracks one title. AvailableCopies is the authoritative availability
// counter, mutated only through BookRepo's conditional updates; Status is a
// derived display hint and must never drive an invariant check.
type Book struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title           string     `gorm:"not null;column:title;index" json:"title"`
	AuthorID        *uuid.UUID `gorm:"type:uuid;index" json:"author_id,omitempty"`
	Author          *Author    `gorm:"constraint:OnDelete:SET NULL;foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	CategoryID      *uuid.UUID `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category        *Category  `gorm:"constraint:OnDelete:SET NULL;foreignKey:CategoryID;references:ID" json:"category,omitempty"`
	ISBN            string     `gorm:"column:isbn;index" json:"isbn,omitempty"`
	Publisher       string     `gorm:"column:publisher" json:"publisher,omitempty"`
	PublicationYear int        `gorm:"column:publication_year" json:"publication_year,omitempty"`
	Pages           int        `gorm:"column:pages" json:"pages,omitempty"`
	Language        string     `gorm:"column:language" json:"language,omitempty"`
	Location        string     `gorm:"column:location" json:"location,omitempty"`
	Description     string     `gorm:"column:description" json:"description,omitempty"`
	CoverImageURL   string     `gorm:"column:cover_image_url" json:"cover_image_url,omitempty"`
	TotalCopies     int        `gorm:"not null;default:1;column:total_copies" json:"total_copies"`
	AvailableCopies int        `gorm:"not null;default:1;column:available_copies" json:"available_copies"`
	Status          string     `gorm:"not null;default:'available';column:status" json:"status"`
	CreatedAt       time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Book) TableName() string {
	return "book"
}
