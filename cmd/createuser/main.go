package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront/internal/users"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "createuser"})

	_ = godotenv.Load()

	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "initial password (falls back to STOREFRONT_CREATEUSER_PASSWORD)")
	firstName := flag.String("first-name", "Staff", "first name")
	lastName := flag.String("last-name", "User", "last name")
	caps := flag.String("caps", "all", `comma separated capabilities, "all" or "none"`)
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("STOREFRONT_CREATEUSER_PASSWORD")
	}

	capabilities, err := parseCapabilities(*caps)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "createuser",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	user, created, err := provision(ctx, users.NewRepository(dbClient.DB()), cfg.Password, staffAccount{
		Email:        *email,
		Password:     *password,
		FirstName:    *firstName,
		LastName:     *lastName,
		Capabilities: capabilities,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "createuser failed: %v\n", err)
		os.Exit(1)
	}

	verb := "updated"
	if created {
		verb = "created"
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"user_id":      user.ID.String(),
		"email":        user.Email,
		"capabilities": user.Capabilities,
	}), "staff user "+verb)
}

// parseCapabilities accepts "all", "none" or a comma separated list.
func parseCapabilities(raw string) ([]enums.Capability, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "all":
		return enums.AllCapabilities(), nil
	case "", "none":
		return []enums.Capability{}, nil
	}
	seen := map[enums.Capability]struct{}{}
	out := []enums.Capability{}
	for _, part := range strings.Split(raw, ",") {
		capability, err := enums.ParseCapability(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[capability]; dup {
			continue
		}
		seen[capability] = struct{}{}
		out = append(out, capability)
	}
	return out, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
