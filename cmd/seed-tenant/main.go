package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zzpfin/api/internal/auth"
	"github.com/zzpfin/api/internal/database"
)

// Creates a tenant with its first user so a fresh install has
// something to log in with. VAT rates are seeded by the migrations.
func main() {
	tenantName := flag.String("tenant", "", "Tenant (business) name")
	email := flag.String("email", "", "Admin user email")
	password := flag.String("password", "", "Admin user password")
	name := flag.String("name", "", "Admin user display name")
	dbURL := flag.String("db", "", "Database URL")
	flag.Parse()

	if *dbURL == "" {
		*dbURL = os.Getenv("DATABASE_URL")
	}
	if *dbURL == "" {
		log.Fatal("database URL is required: use -db flag or DATABASE_URL env var")
	}
	if *tenantName == "" || *email == "" || *password == "" {
		log.Fatal("-tenant, -email and -password are required")
	}
	if *name == "" {
		*name = *tenantName
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, *dbURL)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(*dbURL); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	authSvc := auth.NewService(pool, auth.NewJWTManager("unused"), nil, "ZZPFin")
	user, err := authSvc.Register(ctx, auth.RegisterParams{
		TenantName: *tenantName,
		Email:      *email,
		Password:   *password,
		Name:       *name,
	})
	if err != nil {
		log.Fatalf("creating tenant: %v", err)
	}

	fmt.Printf("tenant %s created with user %s (%s)\n", user.TenantID, user.ID, user.Email)
}
