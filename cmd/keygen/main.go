// SPDX-License-Identifier: MIT

// Command keygen issues tenant API keys. The full key is printed exactly
// once; the database only ever holds its hash and prefix.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/coursesmith/coursesmith/internal/auth"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/store"
)

func main() {
	dbPath := flag.String("db", "data/coursesmith.db", "path to the database")
	tenantName := flag.String("tenant", "", "tenant name (created if missing)")
	env := flag.String("env", auth.EnvLive, "key environment: live or test")
	label := flag.String("label", "", "human-readable key label")
	scopes := flag.String("scopes", "prep,check", "comma-separated scopes")
	prepLimit := flag.Int("prep-limit", 60, "prep requests per minute (0 = unlimited)")
	checkLimit := flag.Int("check-limit", 120, "check requests per minute (0 = unlimited)")
	flag.Parse()

	if *tenantName == "" {
		fmt.Fprintln(os.Stderr, "keygen: -tenant is required")
		os.Exit(2)
	}

	if err := run(*dbPath, *tenantName, *env, *label, *scopes, *prepLimit, *checkLimit); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, tenantName, env, label, scopes string, prepLimit, checkLimit int) error {
	ctx := context.Background()

	s, err := store.Open(dbPath, store.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	tenant, err := s.Tenants.ByName(ctx, tenantName)
	if errors.Is(err, fault.ErrNotFound) {
		tenant = &model.Tenant{Name: tenantName, IsActive: true}
		if err := s.Tenants.Create(ctx, tenant); err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}
		fmt.Printf("created tenant %q (%s)\n", tenant.Name, tenant.ID)
	} else if err != nil {
		return fmt.Errorf("lookup tenant: %w", err)
	}

	gk, err := auth.GenerateAPIKey(env)
	if err != nil {
		return err
	}

	var scopeList []string
	for _, sc := range strings.Split(scopes, ",") {
		if sc = strings.TrimSpace(sc); sc != "" {
			scopeList = append(scopeList, sc)
		}
	}

	key := &model.APIKey{
		TenantID:       tenant.ID,
		KeyHash:        gk.Hash,
		KeyPrefix:      gk.Prefix,
		Label:          label,
		Scopes:         scopeList,
		RateLimitPrep:  prepLimit,
		RateLimitCheck: checkLimit,
		IsActive:       true,
	}
	if err := s.APIKeys.Create(ctx, key); err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	fmt.Printf("tenant:  %s\n", tenant.Name)
	fmt.Printf("prefix:  %s\n", gk.Prefix)
	fmt.Printf("scopes:  %s\n", strings.Join(scopeList, ","))
	fmt.Printf("api key: %s\n", gk.Full)
	fmt.Println("store this key now; it cannot be recovered")
	return nil
}
