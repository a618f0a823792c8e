package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PhotoStore persists validated photo bytes under a content-addressed name
// and returns the public reference path to store on the owning entity.
type PhotoStore interface {
	Save(ctx context.Context, originalFilename string, content []byte) (string, error)
}

const defaultPublicPrefix = "/static/pets"

// DiskStore writes photos to a local directory. The storage filename is the
// SHA-256 digest of the content plus the original extension, so identical
// content always maps to the same path and re-uploads are no-ops.
type DiskStore struct {
	basePath     string
	publicPrefix string
}

// NewDiskStore creates the base directory if missing.
func NewDiskStore(basePath, publicPrefix string) (*DiskStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	publicPrefix = strings.TrimSpace(publicPrefix)
	if publicPrefix == "" {
		publicPrefix = defaultPublicPrefix
	}
	return &DiskStore{basePath: basePath, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

// Save writes the content under its digest-derived name. An existing file
// with that name already holds the same bytes, so the write is skipped. New
// content goes through a temp file and an atomic rename so a concurrent
// reader never observes a partial photo.
func (s *DiskStore) Save(_ context.Context, originalFilename string, content []byte) (string, error) {
	name := ContentAddressedName(originalFilename, content)
	target := filepath.Join(s.basePath, name)
	public := s.publicPrefix + "/" + name

	if _, err := os.Stat(target); err == nil {
		return public, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat photo: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp photo: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close photo: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish photo: %w", err)
	}
	return public, nil
}

// Dir returns the base directory, for serving under the static path prefix.
func (s *DiskStore) Dir() string {
	return s.basePath
}

// PublicPrefix returns the URL prefix photos are served under.
func (s *DiskStore) PublicPrefix() string {
	return s.publicPrefix
}

// ContentAddressedName derives the storage filename for a photo: the SHA-256
// hex digest of its bytes plus the original file extension, lower-cased.
func ContentAddressedName(originalFilename string, content []byte) string {
	sum := sha256.Sum256(content)
	ext := strings.ToLower(path.Ext(filepath.Base(originalFilename)))
	return hex.EncodeToString(sum[:]) + ext
}
