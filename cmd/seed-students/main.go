package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/database"
	"github.com/secureexam/portal-backend/internal/logger"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

// Seeds verified student accounts for development and load testing.
// Usernames are student0001..student<N> with a shared password.
func main() {
	var (
		count    int
		password string
		domain   string
	)
	flag.IntVar(&count, "count", 10, "Number of student accounts to create")
	flag.StringVar(&password, "password", "Student#123", "Password for every seeded account")
	flag.StringVar(&domain, "domain", "students.example.com", "Email domain for seeded accounts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error: invalid configuration:", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	created := 0
	for i := 1; i <= count; i++ {
		username := fmt.Sprintf("student%04d", i)
		user := &model.User{
			Username:      username,
			Email:         fmt.Sprintf("%s@%s", username, domain),
			PasswordHash:  string(hash),
			Role:          model.RoleStudent,
			EmailVerified: true,
			Active:        true,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("Skipping student")
			continue
		}
		created++
	}

	fmt.Printf("Seeded %d/%d student accounts\n", created, count)
}
