package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"relaycloud/internal/auth"
)

func main() {
	secret := flag.String("secret", os.Getenv("AUTH_JWT_SECRET"), "JWT signing secret")
	userID := flag.String("user", "", "user id to embed as the subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		log.Fatal("-secret or AUTH_JWT_SECRET is required")
	}
	if *userID == "" {
		log.Fatal("-user is required")
	}

	token, err := auth.SignJWT([]byte(*secret), *userID, uuid.NewString(), *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
