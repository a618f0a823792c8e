package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"petsphere/pkg/domain"
)

// PoolConfig sizes the underlying SQL connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, applies pool sizing, and runs auto-migrations.
func NewGormStore(dsn string, pool PoolConfig) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if err := db.AutoMigrate(&UserModel{}, &PetModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Transact runs fn inside one database transaction. GORM commits on a nil
// return, rolls back otherwise, and releases the connection either way.
func (s *GormStore) Transact(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "role", "status", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SavePet stores or updates a pet.
func (s *GormStore) SavePet(p domain.Pet) error {
	model := petToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "species", "breed", "sex", "birth_date", "photo_url", "attributes", "updated_at"}),
	}).Create(&model).Error
}

// GetPet retrieves a pet.
func (s *GormStore) GetPet(id string) (domain.Pet, bool, error) {
	var model PetModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Pet{}, false, nil
		}
		return domain.Pet{}, false, err
	}
	return petFromModel(model), true, nil
}

// ListPetsByOwner returns an owner's pets ordered by created_at.
func (s *GormStore) ListPetsByOwner(ownerID string) ([]domain.Pet, error) {
	var models []PetModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Pet, 0, len(models))
	for _, m := range models {
		res = append(res, petFromModel(m))
	}
	return res, nil
}

// DeletePet removes a pet.
func (s *GormStore) DeletePet(id string) error {
	return s.db.Delete(&PetModel{}, "id = ?", id).Error
}

// SetPetPhoto updates the stored photo reference.
func (s *GormStore) SetPetPhoto(id, photoURL string) error {
	return s.db.Model(&PetModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"photo_url":  photoURL,
			"updated_at": time.Now().UTC(),
		}).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	status := domain.UserStatus(m.Status)
	if status == "" {
		status = domain.StatusActive
	}
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func petToModel(p domain.Pet) PetModel {
	attrs, _ := json.Marshal(p.Attributes)
	return PetModel{
		ID:         p.ID,
		OwnerID:    p.OwnerID,
		Name:       p.Name,
		Species:    string(p.Species),
		Breed:      p.Breed,
		Sex:        string(p.Sex),
		BirthDate:  p.BirthDate,
		PhotoURL:   p.PhotoURL,
		Attributes: attrs,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func petFromModel(m PetModel) domain.Pet {
	var attrs map[string]string
	if len(m.Attributes) > 0 {
		_ = json.Unmarshal(m.Attributes, &attrs)
	}
	return domain.Pet{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Name:       m.Name,
		Species:    domain.Species(m.Species),
		Breed:      m.Breed,
		Sex:        domain.Sex(m.Sex),
		BirthDate:  m.BirthDate,
		PhotoURL:   m.PhotoURL,
		Attributes: attrs,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
