package store

import (
	"context"

	"petsphere/pkg/domain"
)

// Store defines persistence operations for users and pets.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// pets
	SavePet(domain.Pet) error
	GetPet(id string) (domain.Pet, bool, error)
	ListPetsByOwner(ownerID string) ([]domain.Pet, error)
	DeletePet(id string) error
	SetPetPhoto(id, photoURL string) error

	// Transact runs fn inside one unit of work scoped to the request:
	// committed when fn returns nil, rolled back otherwise, released on
	// every exit path. Nested calls are not supported.
	Transact(ctx context.Context, fn func(Store) error) error
}
