package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	// MinPasswordLength is the shortest password a profile may register with.
	MinPasswordLength = 8
	// bcrypt ignores everything past this many bytes.
	maxPasswordBytes = 72
)

// ErrInvalidCredentials reports a password that does not match its hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidatePassword checks a new password before it is hashed.
func ValidatePassword(password string) error {
	fields := map[string]any{"fields": []string{"password"}}
	switch {
	case len(password) < MinPasswordLength:
		return apperrors.NewValidationError("password must have at least 8 characters", fields)
	case len(password) > maxPasswordBytes:
		return apperrors.NewValidationError("password must have at most 72 bytes", fields)
	case strings.TrimSpace(password) == "":
		return apperrors.NewValidationError("password must not be blank", fields)
	}
	return nil
}

// HashPassword hashes password with cost, clamped to the range bcrypt accepts.
func HashPassword(password string, cost int) (string, error) {
	cost = min(max(cost, bcrypt.MinCost), bcrypt.MaxCost)
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword returns ErrInvalidCredentials unless plain matches hashed.
// Malformed hashes count as a mismatch.
func ComparePassword(hashed, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

