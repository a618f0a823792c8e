package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type PetModel struct {
	ID         string `gorm:"primaryKey"`
	OwnerID    string `gorm:"not null;index"`
	Name       string `gorm:"not null"`
	Species    string `gorm:"not null"`
	Breed      string
	Sex        string
	BirthDate  string
	PhotoURL   string
	Attributes datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null;index"`
	UpdatedAt  time.Time      `gorm:"not null"`
}
