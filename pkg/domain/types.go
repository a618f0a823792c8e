package domain

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

type Species string

const (
	SpeciesDog   Species = "dog"
	SpeciesCat   Species = "cat"
	SpeciesBird  Species = "bird"
	SpeciesOther Species = "other"
)

type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Pet struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"ownerId"`
	Name       string            `json:"name"`
	Species    Species           `json:"species"`
	Breed      string            `json:"breed,omitempty"`
	Sex        Sex               `json:"sex,omitempty"`
	BirthDate  string            `json:"birthDate,omitempty"`
	PhotoURL   string            `json:"photoUrl,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ParseSpecies normalizes a species string; unknown values map to "other".
func ParseSpecies(raw string) Species {
	switch s := Species(strings.ToLower(strings.TrimSpace(raw))); s {
	case SpeciesDog, SpeciesCat, SpeciesBird:
		return s
	default:
		return SpeciesOther
	}
}

// ParseSex normalizes a sex string; unknown values map to "unknown".
func ParseSex(raw string) Sex {
	switch s := Sex(strings.ToLower(strings.TrimSpace(raw))); s {
	case SexMale, SexFemale:
		return s
	default:
		return SexUnknown
	}
}
