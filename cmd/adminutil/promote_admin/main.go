package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/sudo-init-do/mardikor/internal/config"
	"github.com/sudo-init-do/mardikor/internal/db"
	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store/postgres"
)

func main() {
	email := flag.String("email", "", "Email of the user to promote to admin")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run cmd/adminutil/promote_admin/main.go -email user@example.com")
	}

	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if dsn == "" {
		log.Fatalf("DATABASE_URL (or DB_HOST and friends) must point at the database")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	// Ensure tables are in place (idempotent)
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	st := postgres.New(pool)
	u, err := st.GetUserByEmail(ctx, domain.NormalizeEmail(*email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Fatalf("no user found with email: %s", *email)
		}
		log.Fatalf("failed to look up user: %v", err)
	}

	if _, err := st.SetRole(ctx, u.ID, domain.RoleAdmin); err != nil {
		log.Fatalf("failed to promote user to admin: %v", err)
	}

	fmt.Printf("User %s promoted to admin.\n", *email)
}
