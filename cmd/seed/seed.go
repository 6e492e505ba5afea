package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"bankcards/internal/auth"
	"bankcards/internal/errors"
	"bankcards/internal/model"
	"bankcards/internal/service"
)

// SeedFile is the YAML document accepted by the seed command.
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

// SeedUser describes a user and the cards issued to them.
type SeedUser struct {
	Username string     `yaml:"username"`
	Email    string     `yaml:"email"`
	Role     model.Role `yaml:"role"`
	Cards    []SeedCard `yaml:"cards"`
}

// SeedCard describes one card. Expiry is YYYY-MM-DD and balance a decimal string.
type SeedCard struct {
	Number  string `yaml:"number"`
	Expiry  string `yaml:"expiry"`
	Balance string `yaml:"balance"`
	Status  string `yaml:"status"`
}

func loadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return parseSeed(f)
}

func parseSeed(r io.Reader) (*SeedFile, error) {
	var file SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for i, u := range file.Users {
		if u.Username == "" || u.Email == "" {
			return nil, fmt.Errorf("user %d: username and email are required", i)
		}
	}
	return &file, nil
}

type seeder struct {
	users  service.UserService
	cards  service.CardService
	tokens *auth.JWTService
	log    logrus.FieldLogger
	out    io.Writer
}

// Result counts what a seed run created.
type Result struct {
	Users int
	Cards int
}

// apply creates missing users and cards. Existing usernames and card numbers are skipped,
// so a file can be applied more than once.
func (s *seeder) apply(ctx context.Context, file *SeedFile) (Result, error) {
	var res Result
	for _, su := range file.Users {
		user, err := s.users.FindByUsername(ctx, su.Username)
		switch {
		case stderrors.Is(err, errors.ErrUserNotFound):
			user, err = s.users.CreateUser(ctx, &model.User{Username: su.Username, Email: su.Email, Role: su.Role})
			if err != nil {
				return res, fmt.Errorf("create user %s: %w", su.Username, err)
			}
			res.Users++
		case err != nil:
			return res, fmt.Errorf("look up user %s: %w", su.Username, err)
		}

		for i, sc := range su.Cards {
			in, err := sc.input(user.ID)
			if err != nil {
				return res, fmt.Errorf("user %s card %d: %w", su.Username, i, err)
			}
			card, err := s.cards.CreateCard(ctx, in)
			if stderrors.Is(err, errors.ErrDuplicateCard) {
				s.log.WithFields(logrus.Fields{"username": su.Username, "card": i}).Info("card already exists, skipping")
				continue
			}
			if err != nil {
				return res, fmt.Errorf("user %s card %d: %w", su.Username, i, err)
			}
			s.log.WithFields(logrus.Fields{"username": su.Username, "card_id": card.ID}).Info("card seeded")
			res.Cards++
		}

		if s.tokens != nil {
			token, err := s.tokens.GenerateAccessToken(user.ID, user.Role)
			if err != nil {
				return res, fmt.Errorf("token for %s: %w", su.Username, err)
			}
			fmt.Fprintf(s.out, "%s\t%s\t%s\n", user.Username, user.Role, token)
		}
	}
	return res, nil
}

func (sc SeedCard) input(ownerID int64) (service.CreateCardInput, error) {
	expiry, err := time.Parse(time.DateOnly, sc.Expiry)
	if err != nil {
		return service.CreateCardInput{}, fmt.Errorf("expiry %q: %w", sc.Expiry, err)
	}
	balance := decimal.Zero
	if sc.Balance != "" {
		if balance, err = decimal.NewFromString(sc.Balance); err != nil {
			return service.CreateCardInput{}, fmt.Errorf("balance %q: %w", sc.Balance, err)
		}
	}
	return service.CreateCardInput{
		Number:     sc.Number,
		ExpiryDate: expiry,
		Status:     model.CardStatus(sc.Status),
		Balance:    balance,
		OwnerID:    ownerID,
	}, nil
}
