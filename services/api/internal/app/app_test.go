package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"petsphere/internal/upload"
	"petsphere/internal/usertoken"
	"petsphere/pkg/domain"
	"petsphere/pkg/queue"
	"petsphere/pkg/storage"
	"petsphere/pkg/store"
)

type stubLimiter struct {
	mu      sync.Mutex
	allowed bool
	calls   []string
}

func (l *stubLimiter) Allow(_ context.Context, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, userID)
	return l.allowed
}

type stubEvents struct {
	mu   sync.Mutex
	jobs []queue.Job
	fail bool
}

func (e *stubEvents) Enqueue(_ context.Context, event, petID, ownerID string) (queue.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return queue.Job{}, errors.New("broker down")
	}
	job := queue.Job{ID: "job-1", Event: event, PetID: petID, OwnerID: ownerID}
	e.jobs = append(e.jobs, job)
	return job, nil
}

type fixture struct {
	app     *App
	store   *store.MemoryStore
	limiter *stubLimiter
	events  *stubEvents
	photos  *storage.DiskStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := usertoken.New(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("usertoken.New: %v", err)
	}
	photos, err := storage.NewDiskStore(t.TempDir(), "/static/pets")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	f := &fixture{
		store:   store.NewMemoryStore(),
		limiter: &stubLimiter{allowed: true},
		events:  &stubEvents{},
		photos:  photos,
	}
	f.app, err = New(Config{
		Store:     f.store,
		Tokens:    tokens,
		Limiter:   f.limiter,
		Photos:    photos,
		Validator: upload.NewValidator(nil, 0),
		Events:    f.events,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func (f *fixture) signUp(t *testing.T, email string) (domain.User, string) {
	t.Helper()
	user, token, err := f.app.SignUp(context.Background(), email, "hunter22")
	if err != nil {
		t.Fatalf("SignUp(%q): %v", email, err)
	}
	return user, token
}

func TestSignUpIssuesUsableToken(t *testing.T) {
	f := newFixture(t)
	user, token := f.signUp(t, "Ada@Example.COM")

	if user.Email != "ada@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.Role != domain.RoleUser || user.Status != domain.StatusActive {
		t.Errorf("unexpected role/status: %s/%s", user.Role, user.Status)
	}
	if user.PasswordHash == "hunter22" {
		t.Error("password stored in the clear")
	}

	got, err := f.app.CurrentUser(context.Background(), token)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("CurrentUser resolved %q, want %q", got.ID, user.ID)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "ada@example.com")

	_, _, err := f.app.SignUp(context.Background(), "ADA@example.com", "other")
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("got %v, want ErrEmailAlreadyExists", err)
	}
}

func TestSignUpRequiresEmailAndPassword(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ email, password string }{
		{"", "pw"},
		{"a@b.c", ""},
		{"   ", "pw"},
	} {
		if _, _, err := f.app.SignUp(context.Background(), tc.email, tc.password); !errors.Is(err, ErrEmailAndPasswordRequired) {
			t.Errorf("SignUp(%q, %q) = %v, want ErrEmailAndPasswordRequired", tc.email, tc.password, err)
		}
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	user, _ := f.signUp(t, "ada@example.com")

	got, token, err := f.app.Login(context.Background(), "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID || token == "" {
		t.Errorf("unexpected login result: id=%q token=%q", got.ID, token)
	}

	// Wrong password and unknown user yield the same error kind.
	if _, _, err := f.app.Login(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, _, err := f.app.Login(context.Background(), "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestCurrentUserPipelineOrder(t *testing.T) {
	f := newFixture(t)
	_, token := f.signUp(t, "ada@example.com")

	// Bad token short-circuits before any store or limiter work.
	f.limiter.calls = nil
	if _, err := f.app.CurrentUser(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
	if len(f.limiter.calls) != 0 {
		t.Error("limiter consulted for an invalid token")
	}

	// Rate limit rejection happens after the user resolved.
	f.limiter.allowed = false
	if _, err := f.app.CurrentUser(context.Background(), token); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
}

func TestCurrentUserUnknownSubject(t *testing.T) {
	f := newFixture(t)
	tokens, err := usertoken.New(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatal(err)
	}
	token, err := tokens.Sign("ghost-user")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.app.CurrentUser(context.Background(), token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
	if len(f.limiter.calls) != 0 {
		t.Error("limiter consulted for an unknown user")
	}
}

func TestCreatePet(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")

	pet, err := f.app.CreatePet(context.Background(), owner, PetInput{
		Name:    "  Rex ",
		Species: "DOG",
		Sex:     "male",
	}, nil)
	if err != nil {
		t.Fatalf("CreatePet: %v", err)
	}
	if pet.Name != "Rex" || pet.Species != domain.SpeciesDog || pet.OwnerID != owner.ID {
		t.Errorf("unexpected pet: %+v", pet)
	}

	if len(f.events.jobs) != 1 || f.events.jobs[0].Event != queue.EventPetCreated {
		t.Errorf("expected one pet.created job, got %+v", f.events.jobs)
	}

	stored, ok, err := f.store.GetPet(pet.ID)
	if err != nil || !ok {
		t.Fatalf("GetPet: ok=%v err=%v", ok, err)
	}
	if stored.Name != "Rex" {
		t.Errorf("stored pet name %q", stored.Name)
	}
}

func TestCreatePetRequiresName(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")

	if _, err := f.app.CreatePet(context.Background(), owner, PetInput{Name: "   "}, nil); !errors.Is(err, ErrPetNameRequired) {
		t.Fatalf("got %v, want ErrPetNameRequired", err)
	}
}

func TestCreatePetWithPhoto(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")

	pet, err := f.app.CreatePet(context.Background(), owner, PetInput{Name: "Rex"}, &PhotoUpload{
		Filename:    "rex.png",
		ContentType: "image/png",
		Content:     bytes.NewReader([]byte("png-bytes")),
	})
	if err != nil {
		t.Fatalf("CreatePet: %v", err)
	}
	if !strings.HasPrefix(pet.PhotoURL, "/static/pets/") || !strings.HasSuffix(pet.PhotoURL, ".png") {
		t.Errorf("unexpected photo url %q", pet.PhotoURL)
	}
}

func TestCreatePetRejectedPhotoLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")

	_, err := f.app.CreatePet(context.Background(), owner, PetInput{Name: "Rex"}, &PhotoUpload{
		Filename:    "rex.gif",
		ContentType: "image/gif",
		Content:     bytes.NewReader([]byte("gif-bytes")),
	})
	if !errors.Is(err, upload.ErrUnsupportedType) {
		t.Fatalf("got %v, want ErrUnsupportedType", err)
	}
	pets, err := f.store.ListPetsByOwner(owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pets) != 0 {
		t.Errorf("pet record created despite rejected upload: %+v", pets)
	}
}

func TestPetOwnership(t *testing.T) {
	f := newFixture(t)
	ada, _ := f.signUp(t, "ada@example.com")
	eve, _ := f.signUp(t, "eve@example.com")

	pet, err := f.app.CreatePet(context.Background(), ada, PetInput{Name: "Rex"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.app.GetPet(context.Background(), eve, pet.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("GetPet by non-owner: got %v, want ErrForbidden", err)
	}
	if _, err := f.app.UpdatePet(context.Background(), eve, pet.ID, PetInput{Name: "Stolen"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("UpdatePet by non-owner: got %v, want ErrForbidden", err)
	}
	if err := f.app.DeletePet(context.Background(), eve, pet.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeletePet by non-owner: got %v, want ErrForbidden", err)
	}

	// Admins may read any pet but not mutate someone else's.
	admin := domain.User{ID: "admin-1", Role: domain.RoleAdmin}
	if _, err := f.app.GetPet(context.Background(), admin, pet.ID); err != nil {
		t.Errorf("GetPet by admin: %v", err)
	}
}

func TestUpdatePetPartialFields(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")

	pet, err := f.app.CreatePet(context.Background(), owner, PetInput{
		Name:    "Rex",
		Species: "dog",
		Breed:   "husky",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := f.app.UpdatePet(context.Background(), owner, pet.ID, PetInput{Breed: "malamute"})
	if err != nil {
		t.Fatalf("UpdatePet: %v", err)
	}
	if updated.Breed != "malamute" {
		t.Errorf("breed = %q, want malamute", updated.Breed)
	}
	if updated.Name != "Rex" || updated.Species != domain.SpeciesDog {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.After(pet.UpdatedAt) && !updated.UpdatedAt.Equal(pet.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", pet.UpdatedAt, updated.UpdatedAt)
	}
}

func TestDeletePet(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")

	pet, err := f.app.CreatePet(context.Background(), owner, PetInput{Name: "Rex"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.app.DeletePet(context.Background(), owner, pet.ID); err != nil {
		t.Fatalf("DeletePet: %v", err)
	}
	if _, err := f.app.GetPet(context.Background(), owner, pet.ID); !errors.Is(err, ErrPetNotFound) {
		t.Errorf("got %v, want ErrPetNotFound", err)
	}
	if err := f.app.DeletePet(context.Background(), owner, pet.ID); !errors.Is(err, ErrPetNotFound) {
		t.Errorf("second delete: got %v, want ErrPetNotFound", err)
	}
}

func TestSetPetPhoto(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")

	pet, err := f.app.CreatePet(context.Background(), owner, PetInput{Name: "Rex"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	f.events.jobs = nil

	updated, err := f.app.SetPetPhoto(context.Background(), owner, pet.ID, &PhotoUpload{
		Filename:    "rex.jpg",
		ContentType: "image/jpeg",
		Content:     bytes.NewReader([]byte("jpeg-bytes")),
	})
	if err != nil {
		t.Fatalf("SetPetPhoto: %v", err)
	}
	if updated.PhotoURL == "" {
		t.Error("photo url not set")
	}
	if len(f.events.jobs) != 1 || f.events.jobs[0].Event != queue.EventPetPhotoUpdated {
		t.Errorf("expected one pet.photo_updated job, got %+v", f.events.jobs)
	}
}

func TestBrokerOutageDoesNotFailWrites(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.signUp(t, "ada@example.com")
	f.events.fail = true

	pet, err := f.app.CreatePet(context.Background(), owner, PetInput{Name: "Rex"}, nil)
	if err != nil {
		t.Fatalf("CreatePet with failing broker: %v", err)
	}
	if _, ok, _ := f.store.GetPet(pet.ID); !ok {
		t.Error("pet not persisted")
	}
}
