package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"welfare/internal/citizen"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

//go:embed fixtures/seed.yaml
var defaultFixtures []byte

type fixtures struct {
	Password string           `yaml:"password"`
	Citizens []citizenFixture `yaml:"citizens"`
}

type citizenFixture struct {
	Name        string `yaml:"name"`
	Phone       string `yaml:"phone"`
	Role        string `yaml:"role"`
	State       string `yaml:"state"`
	District    string `yaml:"district"`
	Income      *int64 `yaml:"income"`
	Age         *int   `yaml:"age"`
	Gender      string `yaml:"gender"`
	Occupation  string `yaml:"occupation"`
	Education   string `yaml:"education"`
	Pincode     string `yaml:"pincode"`
	BankAccount string `yaml:"bankAccount"`
	IFSC        string `yaml:"ifsc"`
}

type citizenCreator interface {
	Create(ctx context.Context, c *citizen.Citizen, passwordHash string) error
}

func parseFixtures(raw []byte) (fixtures, error) {
	var fx fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	if fx.Password == "" {
		return fixtures{}, errors.New("fixtures: password is required")
	}
	for i, c := range fx.Citizens {
		if c.Phone == "" {
			return fixtures{}, fmt.Errorf("fixtures: citizen %d has no phone", i)
		}
		switch citizen.Role(c.Role) {
		case citizen.RoleOfficial, citizen.RoleBeneficiary:
		default:
			return fixtures{}, fmt.Errorf("fixtures: citizen %s has unknown role %q", c.Phone, c.Role)
		}
	}
	return fx, nil
}

// seedCitizens creates every fixture citizen whose phone is not taken yet
// and reports how many were created.
func seedCitizens(ctx context.Context, store citizenCreator, fx fixtures) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(fx.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	created := 0
	for _, f := range fx.Citizens {
		c := &citizen.Citizen{
			ID:    domain.NewCitizenID(),
			Name:  f.Name,
			Phone: f.Phone,
			Role:  citizen.Role(f.Role),
			Profile: citizen.Profile{
				State:      f.State,
				District:   f.District,
				Income:     f.Income,
				Age:        f.Age,
				Gender:     f.Gender,
				Occupation: f.Occupation,
				Education:  f.Education,
				Pincode:    f.Pincode,
			},
			BankAccount: f.BankAccount,
			IFSC:        f.IFSC,
		}
		if err := store.Create(ctx, c, string(hash)); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("create citizen %s: %w", f.Phone, err)
		}
		created++
	}
	return created, nil
}
