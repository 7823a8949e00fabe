package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// SeedUser is one fixture entry in a seed file.
type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
	Verified bool   `yaml:"verified"`
}

// SeedFile is the YAML document consumed by cmd/seed.
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

// ParseSeedFile decodes and validates seed fixtures.
func ParseSeedFile(data []byte) (*SeedFile, error) {
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("invalid seed yaml: %w", err)
	}
	if len(sf.Users) == 0 {
		return nil, errors.New("seed file contains no users")
	}
	for i, u := range sf.Users {
		if u.Name == "" || NormalizeEmail(u.Email) == "" || u.Password == "" {
			return nil, fmt.Errorf("seed user %d: name, email, password are required", i+1)
		}
	}
	return &sf, nil
}

// LoadSeedFile reads and parses a seed fixture file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeedFile(data)
}

// ApplySeed inserts fixture users, skipping emails that already exist.
// Returns how many users were created.
func ApplySeed(ctx context.Context, repo UserRepository, sf *SeedFile, bcryptCost int) (int, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	created := 0
	for _, u := range sf.Users {
		if _, err := repo.FindByEmail(ctx, u.Email); err == nil {
			log.Printf("seed: skipping existing user %s", NormalizeEmail(u.Email))
			continue
		} else if !errors.Is(err, ErrUserNotFound) {
			return created, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
		if err != nil {
			return created, err
		}
		rec, err := repo.Create(ctx, u.Name, u.Email, string(hash), u.Admin, u.Verified)
		if err != nil {
			return created, err
		}
		log.Printf("seed: created %s (%s) admin=%t verified=%t", rec.Name, rec.Email, u.Admin, u.Verified)
		created++
	}
	return created, nil
}
