package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jrsteele09/ses-client-auth/credentials"
	credentialrepofake "github.com/jrsteele09/ses-client-auth/credentials/repofake"
	engineerrepofake "github.com/jrsteele09/ses-client-auth/engineers/repofake"
	"github.com/jrsteele09/ses-client-auth/internal/config"
	"github.com/jrsteele09/ses-client-auth/partnerships"
	partnershiprepofakes "github.com/jrsteele09/ses-client-auth/partnerships/repofakes"
	"github.com/jrsteele09/ses-client-auth/server"
	"github.com/jrsteele09/ses-client-auth/storage/postgres"
	"github.com/rs/zerolog/log"
)

type stores struct {
	db           *sql.DB
	credentials  credentials.Store
	partnerships partnerships.Registry
	engineers    server.EngineerCatalog
}

// openStores uses Postgres when DATABASE_URL is set, otherwise seeded in-memory stores (DEV only).
func openStores(ctx context.Context, c *config.Config) (*stores, error) {
	if c.DatabaseURL == "" {
		if c.IsProduction() {
			return nil, errors.New("DATABASE_URL is required in production")
		}
		return openFakeStores(ctx)
	}

	db, err := postgres.Open(ctx, c.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("Using Postgres stores")

	return &stores{
		db:           db,
		credentials:  postgres.NewCredentialStore(db),
		partnerships: postgres.NewPartnershipRegistry(db),
		engineers:    postgres.NewEngineerDirectory(db),
	}, nil
}

func openFakeStores(ctx context.Context) (*stores, error) {
	creds := credentialrepofake.NewFakeCredentialRepo()
	registry := partnershiprepofakes.NewFakePartnershipRepo()
	directory := engineerrepofake.NewFakeEngineerRepo()

	if err := seedDemoData(ctx, creds, registry, directory); err != nil {
		return nil, fmt.Errorf("seeding demo data: %w", err)
	}
	log.Warn().Msg("DATABASE_URL not set, using in-memory stores")

	return &stores{
		credentials:  creds,
		partnerships: registry,
		engineers:    directory,
	}, nil
}

func (s *stores) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *stores) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Err(err).Msg("Failed to close database")
		}
	}
}
