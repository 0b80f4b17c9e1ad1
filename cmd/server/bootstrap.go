package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/jrsteele09/ses-client-auth/credentials"
	credentialrepofake "github.com/jrsteele09/ses-client-auth/credentials/repofake"
	"github.com/jrsteele09/ses-client-auth/engineers"
	engineerrepofake "github.com/jrsteele09/ses-client-auth/engineers/repofake"
	"github.com/jrsteele09/ses-client-auth/partnerships"
	partnershiprepofakes "github.com/jrsteele09/ses-client-auth/partnerships/repofakes"
	"github.com/rs/zerolog/log"
)

const (
	demoPartnershipID = "demo-partnership"
	demoIdentifier    = "buyer@demo-client.example.com"
)

// seedDemoData creates one partnership, a handful of engineers and a client user
// with a generated password that is logged once.
func seedDemoData(
	_ context.Context,
	creds *credentialrepofake.FakeCredentialRepo,
	registry *partnershiprepofakes.FakePartnershipRepo,
	directory *engineerrepofake.FakeEngineerRepo,
) error {
	if err := registry.UpsertPartnership(&partnerships.Partnership{
		ID:                demoPartnershipID,
		StaffingCompanyID: "demo-ses",
		ClientCompanyID:   "demo-client",
		Active:            true,
	}); err != nil {
		return fmt.Errorf("failed to bootstrap partnership: %w", err)
	}
	if err := registry.UpsertGrant(&partnerships.Grant{
		PartnershipID:  demoPartnershipID,
		PermissionType: partnerships.WaitingOnly,
		Active:         true,
	}); err != nil {
		return fmt.Errorf("failed to bootstrap grant: %w", err)
	}

	for _, e := range []engineers.Engineer{
		{Name: "Aoki Haruto", Status: engineers.StatusWaiting},
		{Name: "Baba Yui", Status: engineers.StatusWaitingSoon},
		{Name: "Chiba Ren", Status: engineers.StatusAssigned},
		{Name: "Doi Sora", Status: engineers.StatusInactive},
	} {
		e := e
		if err := directory.Upsert(&e); err != nil {
			return fmt.Errorf("failed to bootstrap engineer: %w", err)
		}
	}

	// Generate a secure random password
	passwordBytes := make([]byte, 16)
	if _, err := rand.Read(passwordBytes); err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}
	generatedPassword := base64.URLEncoding.EncodeToString(passwordBytes)

	passwordHash, err := credentials.HashPassword(generatedPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := creds.Upsert(&credentials.Credential{
		Identifier:    demoIdentifier,
		DisplayName:   "Demo Buyer",
		PasswordHash:  passwordHash,
		PartnershipID: demoPartnershipID,
		Active:        true,
		Roles: []credentials.Role{
			{Name: "client_viewer", Permissions: []string{"engineers:read"}},
			{Name: "client_buyer", Permissions: []string{"engineers:read", "offers:create"}},
		},
	}); err != nil {
		return fmt.Errorf("failed to bootstrap client user: %w", err)
	}

	log.Info().
		Str("identifier", demoIdentifier).
		Str("password", generatedPassword).
		Str("partnership_id", demoPartnershipID).
		Msg("Demo client user created (in-memory stores only)")
	return nil
}
