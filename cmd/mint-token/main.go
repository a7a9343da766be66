// Command mint-token signs a development JWT for connecting to the service
// locally. The production issuer is the main application; this exists so the
// WebSocket endpoint can be exercised without it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mundotango/engagement/internal/auth"
)

func main() {
	userID := flag.Int64("user", 1, "user id claim")
	username := flag.String("username", "dev", "username claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	token, err := auth.NewVerifier(secret).Issue(*userID, *username, *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Println(token)
}
