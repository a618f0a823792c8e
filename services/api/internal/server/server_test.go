package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/http/httptest"
	"testing"

	"petsphere/internal/upload"
	"petsphere/internal/usertoken"
	"petsphere/pkg/domain"
	"petsphere/pkg/storage"
	"petsphere/pkg/store"
	"petsphere/services/api/internal/app"
)

type allowAll struct{}

func (allowAll) Allow(context.Context, string) bool { return true }

type testEnv struct {
	srv    *httptest.Server
	app    *app.App
	store  *store.MemoryStore
	tokens *usertoken.Tokens
}

func newTestEnv(t *testing.T, limiter app.RateLimiter) *testEnv {
	t.Helper()
	tokens, err := usertoken.New(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("usertoken.New: %v", err)
	}
	photos, err := storage.NewDiskStore(t.TempDir(), "/static/pets")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	if limiter == nil {
		limiter = allowAll{}
	}
	memStore := store.NewMemoryStore()
	core, err := app.New(app.Config{
		Store:     memStore,
		Tokens:    tokens,
		Limiter:   limiter,
		Photos:    photos,
		Validator: upload.NewValidator(nil, 64),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	s := New(Config{
		App:            core,
		MaxUploadBytes: 64,
		StaticDir:      photos.Dir(),
		StaticPrefix:   photos.PublicPrefix(),
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, app: core, store: memStore, tokens: tokens}
}

func (e *testEnv) signUp(t *testing.T, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": "hunter22"})
	resp, err := http.Post(e.srv.URL+"/api/auth/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signup request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	return out.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (e *testEnv) createPetJSON(t *testing.T, token, name string) domain.Pet {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name, "species": "dog"})
	resp := e.do(t, http.MethodPost, "/api/pets", token, bytes.NewReader(body), "application/json")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pet expected 201, got %d", resp.StatusCode)
	}
	var pet domain.Pet
	if err := json.NewDecoder(resp.Body).Decode(&pet); err != nil {
		t.Fatalf("decode pet: %v", err)
	}
	return pet
}

func multipartPet(t *testing.T, petJSON string, photoName, photoType string, photoBytes []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if petJSON != "" {
		if err := mw.WriteField("pet", petJSON); err != nil {
			t.Fatal(err)
		}
	}
	if photoName != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="photo"; filename="`+photoName+`"`)
		hdr.Set("Content-Type", photoType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(photoBytes); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}
