package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/accounts/internal/domain"
	apperrors "github.com/utafrali/accounts/pkg/errors"
	"github.com/utafrali/accounts/pkg/httpclient"
)

// RoleStore is the slice of the user repository the seeder needs. Promotion to
// admin has no HTTP endpoint, so it goes straight to the database.
type RoleStore interface {
	FindByIdentity(ctx context.Context, email, phone string) (*domain.User, error)
	UpdateRole(ctx context.Context, id, role string) (*domain.User, error)
}

// Account is a user the seeder registers.
type Account struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type tokenEnvelope struct {
	Data struct {
		AccessToken string       `json:"access_token"`
		User        *domain.User `json:"user"`
	} `json:"data"`
}

type countEnvelope struct {
	Data struct {
		Total  int `json:"total"`
		ByRole []struct {
			Role  string `json:"role"`
			Count int    `json:"count"`
		} `json:"by_role"`
	} `json:"data"`
}

// Seeder populates a running accounts service with an admin and demo users.
type Seeder struct {
	client  *httpclient.Client
	baseURL string
	roles   RoleStore
	logger  *slog.Logger
}

// NewSeeder creates a Seeder talking to the accounts API at baseURL.
func NewSeeder(client *httpclient.Client, baseURL string, roles RoleStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		roles:   roles,
		logger:  logger,
	}
}

// Result summarizes a seeding run.
type Result struct {
	AdminID  string
	Created  int
	Existing int
	ByRole   map[string]int
}

// Run registers admin and promotes it, then registers and verifies each demo
// account. Accounts that already exist are left as they are.
func (s *Seeder) Run(ctx context.Context, admin Account, demo []Account) (*Result, error) {
	res := &Result{ByRole: make(map[string]int)}

	if _, err := s.register(ctx, admin); err != nil && !errors.Is(err, apperrors.ErrConflict) {
		return nil, fmt.Errorf("register admin: %w", err)
	}

	existing, err := s.roles.FindByIdentity(ctx, admin.Email, admin.Phone)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if existing.Role != domain.RoleAdmin {
		if _, err := s.roles.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
			return nil, fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info("promoted admin", slog.String("user_id", existing.ID))
	}
	res.AdminID = existing.ID

	// Login picks up the promoted role in the issued session.
	adminToken, err := s.login(ctx, admin)
	if err != nil {
		return nil, fmt.Errorf("login admin: %w", err)
	}

	for _, acct := range demo {
		token, err := s.register(ctx, acct)
		if errors.Is(err, apperrors.ErrConflict) {
			res.Existing++
			s.logger.Info("account exists", slog.String("identity", identity(acct)))
			continue
		}
		if err != nil {
			s.logger.Warn("register account failed",
				slog.String("identity", identity(acct)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := s.client.DoJSON(ctx, http.MethodPost, s.baseURL+"/api/v1/auth/verify-account", token, nil, nil); err != nil {
			s.logger.Warn("verify account failed",
				slog.String("identity", identity(acct)),
				slog.String("error", err.Error()),
			)
		}
		res.Created++
		s.logger.Info("account created", slog.String("identity", identity(acct)))
	}

	var counts countEnvelope
	if err := s.client.DoJSON(ctx, http.MethodGet, s.baseURL+"/api/v1/users/count", adminToken, nil, &counts); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	for _, rc := range counts.Data.ByRole {
		res.ByRole[rc.Role] = rc.Count
	}

	return res, nil
}

func (s *Seeder) register(ctx context.Context, acct Account) (string, error) {
	var out tokenEnvelope
	if err := s.client.DoJSON(ctx, http.MethodPost, s.baseURL+"/api/v1/auth/register", "", acct, &out); err != nil {
		return "", err
	}
	return out.Data.AccessToken, nil
}

func (s *Seeder) login(ctx context.Context, acct Account) (string, error) {
	body := map[string]string{
		"email":    acct.Email,
		"phone":    acct.Phone,
		"password": acct.Password,
	}
	var out tokenEnvelope
	if err := s.client.DoJSON(ctx, http.MethodPost, s.baseURL+"/api/v1/auth/login", "", body, &out); err != nil {
		return "", err
	}
	return out.Data.AccessToken, nil
}

func identity(acct Account) string {
	if acct.Email != "" {
		return acct.Email
	}
	return acct.Phone
}

// demoAccounts builds n demo accounts, alternating email and phone identities.
func demoAccounts(n int, password string) []Account {
	accounts := make([]Account, 0, n)
	for i := 1; i <= n; i++ {
		acct := Account{Name: fmt.Sprintf("Demo User %d", i), Password: password}
		if i%2 == 0 {
			acct.Phone = fmt.Sprintf("+1555000%04d", i)
		} else {
			acct.Email = fmt.Sprintf("demo%d@example.com", i)
		}
		accounts = append(accounts, acct)
	}
	return accounts
}
