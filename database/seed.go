package database

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paycheck/paycheck-backend/model"
	"github.com/paycheck/paycheck-backend/util"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Seed is the fixture file layout accepted by LoadSeed.
type Seed struct {
	Organizations []model.Organization `yaml:"organizations"`
	Users         []model.User         `yaml:"users"`
}

// SeedStore is the subset of a store needed to load fixtures.
type SeedStore interface {
	SaveOrganization(ctx context.Context, org *model.Organization) (*model.Organization, error)
	SaveUser(ctx context.Context, user *model.User) (*model.User, error)
}

// SeedResult counts what a seed run inserted and skipped.
type SeedResult struct {
	Organizations int
	Users         int
	Skipped       int
}

// ParseSeed decodes a YAML fixture document.
func ParseSeed(content []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.UnmarshalStrict(content, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	for i := range seed.Organizations {
		org := &seed.Organizations[i]
		if org.Name == "" {
			return nil, fmt.Errorf("seed organization %d: name is required", i)
		}
		org.Key = util.SanitizeKey(org.Key)
		org.Rev = ""
	}
	for i := range seed.Users {
		user := &seed.Users[i]
		if user.Username == "" {
			return nil, fmt.Errorf("seed user %d: username is required", i)
		}
		user.Key = util.SanitizeKey(user.Key)
		user.Rev = ""
	}
	return &seed, nil
}

// LoadSeed inserts the fixtures found at path. Documents that already exist
// are left untouched so the seed can run on every start.
func LoadSeed(ctx context.Context, path string, store SeedStore, logger *zap.Logger) (SeedResult, error) {
	content, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return SeedResult{}, fmt.Errorf("read seed %s: %w", path, err)
	}

	seed, err := ParseSeed(content)
	if err != nil {
		return SeedResult{}, err
	}

	var result SeedResult
	for i := range seed.Organizations {
		org := &seed.Organizations[i]
		_, err := store.SaveOrganization(ctx, org)
		switch {
		case errors.Is(err, ErrConflict):
			result.Skipped++
		case err != nil:
			return result, fmt.Errorf("seed organization %s: %w", org.Name, err)
		default:
			result.Organizations++
		}
	}

	for i := range seed.Users {
		user := &seed.Users[i]
		_, err := store.SaveUser(ctx, user)
		switch {
		case errors.Is(err, ErrConflict):
			result.Skipped++
		case err != nil:
			return result, fmt.Errorf("seed user %s: %w", user.Username, err)
		default:
			result.Users++
		}
	}

	logger.Info("Seed loaded",
		zap.String("path", path),
		zap.Int("organizations", result.Organizations),
		zap.Int("users", result.Users),
		zap.Int("skipped", result.Skipped))

	return result, nil
}
