package config

import (
	"fmt"
	"os"

	"github.com/Wyydra/yacall/internal/core/domain"
	"gopkg.in/yaml.v3"
)

type SeedUser struct {
	RollNo string `yaml:"rollno"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email,omitempty"`
}

// SeedFile is the YAML document listing users to pre-register.
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

func LoadSeedUsers(path string) ([]domain.User, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from operator config
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeedUsers(data)
}

func ParseSeedUsers(data []byte) ([]domain.User, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	users := make([]domain.User, 0, len(f.Users))
	for i, su := range f.Users {
		id, err := domain.ParseUserID(su.RollNo)
		if err != nil {
			return nil, fmt.Errorf("seed user %d: %w", i, err)
		}
		users = append(users, domain.NewUser(id, su.Name, su.Email))
	}
	return users, nil
}
