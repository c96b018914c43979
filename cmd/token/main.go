// Command token issues service tokens for the workflow engine.
//
// Usage:
//
//	go run ./cmd/token -tenant acme -subject camunda -role engine -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/service"
)

func main() {
	tenant := flag.String("tenant", "", "tenant the token is scoped to (required)")
	subject := flag.String("subject", "workflow-engine", "token subject")
	role := flag.String("role", string(domain.RoleEngine), "engine or admin")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	if *tenant == "" {
		log.Fatal("-tenant is required")
	}
	r := domain.ServiceRole(*role)
	if r != domain.RoleEngine && r != domain.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	token, err := service.NewAuthService(cfg.JWT).IssueToken(*tenant, *subject, r, *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
