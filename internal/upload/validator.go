package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

const defaultMaxBytes = 5 * 1024 * 1024

var defaultAllowedTypes = []string{"image/jpeg", "image/png", "application/pdf"}

var (
	ErrUnsupportedType = errors.New("file type not allowed")
	ErrTooLarge        = errors.New("file exceeds maximum allowed size")
)

// Validator checks uploaded files against a MIME allow-set and a size cap.
type Validator struct {
	allowed  map[string]struct{}
	maxBytes int64
}

// NewValidator builds a validator; zero maxBytes and empty allowedTypes fall
// back to the configured defaults.
func NewValidator(allowedTypes []string, maxBytes int64) *Validator {
	if len(allowedTypes) == 0 {
		allowedTypes = defaultAllowedTypes
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		allowed[t] = struct{}{}
	}
	return &Validator{allowed: allowed, maxBytes: maxBytes}
}

// Validate rejects a disallowed declared content type before reading any
// bytes, then reads the stream through a cap of maxBytes+1 so an oversized
// payload is detected without buffering more than one byte past the limit.
// On success it returns the full content.
func (v *Validator) Validate(contentType string, r io.Reader) ([]byte, error) {
	if !v.TypeAllowed(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	content, err := io.ReadAll(io.LimitReader(r, v.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(content)) > v.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, v.maxBytes)
	}
	return content, nil
}

// TypeAllowed reports whether the declared content type is in the allow-set.
// Media-type parameters (e.g. "; charset=") are ignored.
func (v *Validator) TypeAllowed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return false
	}
	_, ok := v.allowed[strings.ToLower(mediaType)]
	return ok
}

// MaxBytes returns the configured size cap.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}
