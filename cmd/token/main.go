// Command token mints a bearer token for the API, signed with JWT_SECRET.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/wanderwise/wanderwise/auth"
)

type tokenConfig struct {
	JWTSecret string `env:"JWT_SECRET" env-required:"true"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "user id placed in the token (required)")
	email := fs.String("email", "", "email placed in the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}
	if *ttl <= 0 {
		return errors.New("-ttl must be positive")
	}

	var cfg tokenConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return fmt.Errorf("failed to read environment variables: %w", err)
	}

	token, err := auth.NewJWTService(cfg.JWTSecret).IssueToken(*userID, *email, *ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
