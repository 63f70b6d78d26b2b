package directory

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// seedFile is the YAML layout of a seed directory file.
type seedFile struct {
	Admins []Record `yaml:"admins"`
	Users  []Record `yaml:"users"`
}

// SeedDirectory is a static, file-seeded directory for development and
// tests. Records are validated once at load time; lookups never fail.
type SeedDirectory struct {
	admins []Record
	users  []Record
}

// LoadSeedDirectory reads and validates a YAML seed file.
func LoadSeedDirectory(path string, logger *slog.Logger) (*SeedDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed directory: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed directory: %w", err)
	}

	return NewSeedDirectory(seed.Admins, seed.Users, logger), nil
}

// NewSeedDirectory builds a static directory from in-memory record lists.
// Invalid records are quarantined, same as at the REST boundary.
func NewSeedDirectory(admins, users []Record, logger *slog.Logger) *SeedDirectory {
	return &SeedDirectory{
		admins: filterValid(admins, principal.KindAdmin, logger),
		users:  filterValid(users, principal.KindUser, logger),
	}
}

// Admins returns all administrator records.
func (d *SeedDirectory) Admins(_ context.Context) ([]Record, error) {
	result := make([]Record, len(d.admins))
	copy(result, d.admins)
	return result, nil
}

// Users returns all regular user records.
func (d *SeedDirectory) Users(_ context.Context) ([]Record, error) {
	result := make([]Record, len(d.users))
	copy(result, d.users)
	return result, nil
}

// Compile-time interface verification.
var _ Directory = (*SeedDirectory)(nil)
