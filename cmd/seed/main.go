// Command seed populates a running accounts service with an admin account and
// a handful of verified demo users. Registration and verification go through
// the HTTP API; promotion to admin uses direct SQL since no endpoint grants it.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/accounts/internal/config"
	"github.com/utafrali/accounts/internal/repository/postgres"
	pkgconfig "github.com/utafrali/accounts/pkg/config"
	"github.com/utafrali/accounts/pkg/database"
	"github.com/utafrali/accounts/pkg/httpclient"
	"github.com/utafrali/accounts/pkg/logger"
)

type seedConfig struct {
	AccountsURL   string        `env:"SEED_ACCOUNTS_URL" envDefault:"http://localhost:8080"`
	AdminName     string        `env:"SEED_ADMIN_NAME" envDefault:"Administrator"`
	AdminEmail    string        `env:"SEED_ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string        `env:"SEED_ADMIN_PASSWORD" envDefault:"admin-secret"`
	DemoUsers     int           `env:"SEED_DEMO_USERS" envDefault:"5"`
	DemoPassword  string        `env:"SEED_DEMO_PASSWORD" envDefault:"demo-secret"`
	Timeout       time.Duration `env:"SEED_TIMEOUT" envDefault:"2m"`
}

func main() {
	var seedCfg seedConfig
	if err := pkgconfig.Load(&seedCfg); err != nil {
		slog.Error("failed to load seed config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("accounts-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), seedCfg.Timeout)
	defer cancel()

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	seeder := NewSeeder(
		httpclient.New(httpclient.DefaultConfig()),
		seedCfg.AccountsURL,
		postgres.NewUserRepository(pool),
		log,
	)

	admin := Account{
		Name:     seedCfg.AdminName,
		Email:    seedCfg.AdminEmail,
		Password: seedCfg.AdminPassword,
	}

	res, err := seeder.Run(ctx, admin, demoAccounts(seedCfg.DemoUsers, seedCfg.DemoPassword))
	if err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		pool.Close()
		os.Exit(1)
	}

	log.Info("seed complete",
		slog.String("admin_id", res.AdminID),
		slog.Int("created", res.Created),
		slog.Int("existing", res.Existing),
		slog.Any("by_role", res.ByRole),
	)
}
