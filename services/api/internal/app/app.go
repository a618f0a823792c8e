package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsphere/internal/upload"
	"petsphere/internal/usertoken"
	"petsphere/internal/util"
	"petsphere/pkg/auth"
	"petsphere/pkg/domain"
	"petsphere/pkg/queue"
	"petsphere/pkg/storage"
	"petsphere/pkg/store"
)

// RateLimiter gates requests per user; implemented by ratelimit.PerUserLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, userID string) bool
}

// Events publishes owner notifications; implemented by queue.RedisJobQueue.
// A nil Events disables dispatch.
type Events interface {
	Enqueue(ctx context.Context, event, petID, ownerID string) (queue.Job, error)
}

// Config wires the application core's collaborators. All clients are
// constructed by the process bootstrap and injected here; the core never
// opens connections of its own.
type Config struct {
	Store     store.Store
	Tokens    *usertoken.Tokens
	Limiter   RateLimiter
	Photos    storage.PhotoStore
	Validator *upload.Validator
	Events    Events
}

// App holds the PetSphere domain logic.
type App struct {
	store     store.Store
	tokens    *usertoken.Tokens
	limiter   RateLimiter
	photos    storage.PhotoStore
	validator *upload.Validator
	events    Events
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token signer is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.Photos == nil {
		return nil, fmt.Errorf("photo store is required")
	}
	validator := cfg.Validator
	if validator == nil {
		validator = upload.NewValidator(nil, 0)
	}
	return &App{
		store:     cfg.Store,
		tokens:    cfg.Tokens,
		limiter:   cfg.Limiter,
		photos:    cfg.Photos,
		validator: validator,
		events:    cfg.Events,
	}, nil
}

// SignUp registers a new user and issues an access token.
func (a *App) SignUp(ctx context.Context, email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.Transact(ctx, func(tx store.Store) error {
		return tx.SaveUser(user)
	}); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.tokens.Sign(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues an access token.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.tokens.Sign(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// CurrentUser resolves the calling user from a bearer token. The pipeline
// is ordered and short-circuits on the first failure: token verification,
// then user lookup, then the per-user rate-limit check. Each step fails
// with its own error kind; an expired or malformed token never reaches the
// store.
func (a *App) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	subject, err := a.tokens.VerifySubject(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	user, ok, err := a.store.GetUserByID(subject)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if !a.limiter.Allow(ctx, user.ID) {
		return domain.User{}, ErrRateLimited
	}
	return user, nil
}

// PetInput carries client-supplied pet fields.
type PetInput struct {
	Name       string            `json:"name"`
	Species    string            `json:"species"`
	Breed      string            `json:"breed"`
	Sex        string            `json:"sex"`
	BirthDate  string            `json:"birthDate"`
	Attributes map[string]string `json:"attributes"`
}

// PhotoUpload is an optional photo attached to a pet mutation.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// CreatePet registers a pet for the owner; an optional photo is validated
// and written to the content-addressed store first, so a rejected upload
// never creates a pet record.
func (a *App) CreatePet(ctx context.Context, owner domain.User, in PetInput, photo *PhotoUpload) (domain.Pet, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Pet{}, ErrPetNameRequired
	}
	now := time.Now().UTC()
	pet := domain.Pet{
		ID:         uuid.NewString(),
		OwnerID:    owner.ID,
		Name:       name,
		Species:    domain.ParseSpecies(in.Species),
		Breed:      strings.TrimSpace(in.Breed),
		Sex:        domain.ParseSex(in.Sex),
		BirthDate:  strings.TrimSpace(in.BirthDate),
		Attributes: in.Attributes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if photo != nil {
		photoURL, err := a.storePhoto(ctx, photo)
		if err != nil {
			return domain.Pet{}, err
		}
		pet.PhotoURL = photoURL
	}
	if err := a.store.Transact(ctx, func(tx store.Store) error {
		return tx.SavePet(pet)
	}); err != nil {
		return domain.Pet{}, fmt.Errorf("save pet: %w", err)
	}
	a.publish(ctx, queue.EventPetCreated, pet)
	return pet, nil
}

// GetPet returns a pet visible to the user (owner or admin).
func (a *App) GetPet(ctx context.Context, user domain.User, id string) (domain.Pet, error) {
	pet, ok, err := a.store.GetPet(id)
	if err != nil {
		return domain.Pet{}, fmt.Errorf("fetch pet: %w", err)
	}
	if !ok {
		return domain.Pet{}, ErrPetNotFound
	}
	if pet.OwnerID != user.ID && user.Role != domain.RoleAdmin {
		return domain.Pet{}, ErrForbidden
	}
	return pet, nil
}

// ListPets returns the user's pets.
func (a *App) ListPets(_ context.Context, user domain.User) ([]domain.Pet, error) {
	return a.store.ListPetsByOwner(user.ID)
}

// UpdatePet applies new fields to a pet owned by the user.
func (a *App) UpdatePet(ctx context.Context, user domain.User, id string, in PetInput) (domain.Pet, error) {
	pet, err := a.ownedPet(user, id)
	if err != nil {
		return domain.Pet{}, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		pet.Name = name
	}
	if in.Species != "" {
		pet.Species = domain.ParseSpecies(in.Species)
	}
	if in.Breed != "" {
		pet.Breed = strings.TrimSpace(in.Breed)
	}
	if in.Sex != "" {
		pet.Sex = domain.ParseSex(in.Sex)
	}
	if in.BirthDate != "" {
		pet.BirthDate = strings.TrimSpace(in.BirthDate)
	}
	if in.Attributes != nil {
		pet.Attributes = in.Attributes
	}
	pet.UpdatedAt = time.Now().UTC()
	if err := a.store.Transact(ctx, func(tx store.Store) error {
		return tx.SavePet(pet)
	}); err != nil {
		return domain.Pet{}, fmt.Errorf("update pet: %w", err)
	}
	return pet, nil
}

// DeletePet removes a pet owned by the user.
func (a *App) DeletePet(ctx context.Context, user domain.User, id string) error {
	if _, err := a.ownedPet(user, id); err != nil {
		return err
	}
	if err := a.store.Transact(ctx, func(tx store.Store) error {
		return tx.DeletePet(id)
	}); err != nil {
		return fmt.Errorf("delete pet: %w", err)
	}
	return nil
}

// SetPetPhoto validates and stores a photo for a pet owned by the user.
func (a *App) SetPetPhoto(ctx context.Context, user domain.User, id string, photo *PhotoUpload) (domain.Pet, error) {
	pet, err := a.ownedPet(user, id)
	if err != nil {
		return domain.Pet{}, err
	}
	photoURL, err := a.storePhoto(ctx, photo)
	if err != nil {
		return domain.Pet{}, err
	}
	pet.PhotoURL = photoURL
	pet.UpdatedAt = time.Now().UTC()
	if err := a.store.Transact(ctx, func(tx store.Store) error {
		return tx.SetPetPhoto(id, photoURL)
	}); err != nil {
		return domain.Pet{}, fmt.Errorf("update photo: %w", err)
	}
	a.publish(ctx, queue.EventPetPhotoUpdated, pet)
	return pet, nil
}

func (a *App) ownedPet(user domain.User, id string) (domain.Pet, error) {
	pet, ok, err := a.store.GetPet(id)
	if err != nil {
		return domain.Pet{}, fmt.Errorf("fetch pet: %w", err)
	}
	if !ok {
		return domain.Pet{}, ErrPetNotFound
	}
	if pet.OwnerID != user.ID {
		return domain.Pet{}, ErrForbidden
	}
	return pet, nil
}

func (a *App) storePhoto(ctx context.Context, photo *PhotoUpload) (string, error) {
	content, err := a.validator.Validate(photo.ContentType, photo.Content)
	if err != nil {
		return "", err
	}
	photoURL, err := a.photos.Save(ctx, photo.Filename, content)
	if err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return photoURL, nil
}

// publish enqueues a notification after the write committed. Dispatch is
// best-effort; a broker outage must not fail the request.
func (a *App) publish(ctx context.Context, event string, pet domain.Pet) {
	if a.events == nil {
		return
	}
	if _, err := a.events.Enqueue(ctx, event, pet.ID, pet.OwnerID); err != nil {
		util.LoggerFromContext(ctx).Warn("enqueue notification failed",
			"event", event, "pet_id", pet.ID, "err", err)
	}
}
