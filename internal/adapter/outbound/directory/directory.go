// Package directory provides access to the external principal directories
// (administrators and regular users). The session layer only ever reads
// from here; principals are owned by the directory service.
package directory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// ErrUnavailable is returned when the directory cannot be reached.
// The facade maps it to a retry-suggested login failure.
var ErrUnavailable = errors.New("directory unavailable")

// Record is one directory entry: the principal plus the Argon2id hash of
// its login secret. The hash never leaves this boundary: the session layer
// verifies against it during login and persists only the principal snapshot.
type Record struct {
	Principal  principal.Principal `json:"principal" yaml:"principal" validate:"required"`
	SecretHash string              `json:"secret_hash" yaml:"secret_hash" validate:"required,startswith=$argon2id$"`
}

// Directory lists the known principals per identity type.
type Directory interface {
	// Admins returns all administrator records.
	Admins(ctx context.Context) ([]Record, error)
	// Users returns all regular user records.
	Users(ctx context.Context) ([]Record, error)
}

// validate is the schema applied to every record crossing the boundary.
var validate = validator.New(validator.WithRequiredStructEnabled())

// filterValid drops records that fail schema validation or carry the wrong
// identity kind for the listing they arrived in. Dynamic shapes from the
// REST boundary are never trusted: anything that doesn't match the tagged
// union is quarantined with a warning instead of entering the session layer.
func filterValid(records []Record, kind principal.Kind, logger *slog.Logger) []Record {
	valid := make([]Record, 0, len(records))
	for _, record := range records {
		if record.Principal.Kind == "" {
			record.Principal.Kind = kind
		}
		if record.Principal.Kind != kind {
			logger.Warn("directory record with mismatched kind quarantined",
				"id", record.Principal.ID, "kind", record.Principal.Kind, "expected", kind)
			continue
		}
		if err := validate.Struct(record); err != nil {
			logger.Warn("directory record failed schema validation, quarantined",
				"id", record.Principal.ID, "error", err)
			continue
		}
		valid = append(valid, record)
	}
	return valid
}

// FindByEmail scans records for a case-insensitive email match.
// Returns nil when no record matches.
func FindByEmail(records []Record, email string) *Record {
	for i := range records {
		if records[i].Principal.EmailMatches(email) {
			return &records[i]
		}
	}
	return nil
}
