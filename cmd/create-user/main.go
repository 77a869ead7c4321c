package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"roofcrm-backend/config"
	"roofcrm-backend/database"
	"roofcrm-backend/logging"
	"roofcrm-backend/models"
	"roofcrm-backend/repository"
	"roofcrm-backend/service"

	"github.com/badoux/checkmail"
)

func main() {
	email := flag.String("email", "", "user email (required)")
	name := flag.String("name", "", "display name (required)")
	role := flag.String("role", string(models.RoleSalesRep), "admin, manager or sales_rep")
	password := flag.String("password", "", "initial password (required)")
	flag.Parse()

	if *email == "" || *name == "" || *password == "" {
		flag.Usage()
		log.Fatal("email, name and password are required")
	}
	if err := checkmail.ValidateFormat(*email); err != nil {
		log.Fatalf("Invalid email: %v", err)
	}
	if !models.Role(*role).Valid() {
		log.Fatalf("Unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	if existing, err := users.GetByEmail(ctx, *email); err == nil {
		log.Printf("User with email %s already exists (ID: %s)", *email, existing.ID)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Fatalf("Failed to look up user: %v", err)
	}

	hash, err := service.HashPassword(*password)
	if err != nil {
		log.Fatalf("%v", err)
	}

	user := &models.User{
		Email:        *email,
		Name:         *name,
		Role:         models.Role(*role),
		PasswordHash: hash,
		Active:       true,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("✅ User created successfully!\n")
	fmt.Printf("   ID: %s\n", user.ID)
	fmt.Printf("   Email: %s\n", user.Email)
	fmt.Printf("   Name: %s\n", user.Name)
	fmt.Printf("   Role: %s\n", user.Role)
}
