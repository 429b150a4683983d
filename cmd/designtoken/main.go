package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"designbridge/internal/adapter/repo"
	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/infra/credentials"
)

// designtoken links a design platform account and stores an access token for
// it without the browser login flow. Useful for service accounts and tests.
func main() {
	_ = godotenv.Load()

	var (
		designUserFlag string
		teamFlag       string
		tokenFlag      string
		refreshFlag    string
		expiresFlag    time.Duration
		deleteFlag     bool
	)
	flag.StringVar(&designUserFlag, "design-user", "", "design platform user id")
	flag.StringVar(&teamFlag, "team", "", "design platform team id")
	flag.StringVar(&tokenFlag, "token", "", "access token (falls back to DESIGN_ACCESS_TOKEN)")
	flag.StringVar(&refreshFlag, "refresh", "", "refresh token (falls back to DESIGN_REFRESH_TOKEN)")
	flag.DurationVar(&expiresFlag, "expires-in", 0, "access token lifetime, 0 for unknown")
	flag.BoolVar(&deleteFlag, "delete", false, "remove the stored credential instead")
	flag.Parse()

	designUser := strings.TrimSpace(designUserFlag)
	if designUser == "" {
		fmt.Fprintln(os.Stderr, "-design-user is required")
		os.Exit(1)
	}
	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("DESIGN_ACCESS_TOKEN"))
	}
	refresh := strings.TrimSpace(refreshFlag)
	if refresh == "" {
		refresh = strings.TrimSpace(os.Getenv("DESIGN_REFRESH_TOKEN"))
	}
	if token == "" && !deleteFlag {
		fmt.Fprintln(os.Stderr, "access token is required via -token or DESIGN_ACCESS_TOKEN")
		os.Exit(1)
	}

	cfg := infra.LoadToolConfig()
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger(cfg.AppEnv, "designtoken")
	runner := infra.NewSQLRunner(pool, logger)

	userID, err := repo.NewUserRepository(runner).LinkUser(ctx, designUser, strings.TrimSpace(teamFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to link user: %v\n", err)
		os.Exit(1)
	}

	store := credentials.NewStore(runner)
	if deleteFlag {
		if err := store.Delete(ctx, userID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete credential: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("credential of user %s removed\n", userID)
		return
	}

	rec := credentials.FromCredential(domain.Credential{
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresIn:    int(expiresFlag / time.Second),
	}, time.Now())
	if err := store.Save(ctx, userID, rec); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist credential: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("credential stored for user %s\n", userID)
}
