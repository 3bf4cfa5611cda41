package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
)

const firebaseScope = "https://www.googleapis.com/auth/firebase"

// ServiceAccount is what the server needs from the credential file.
type ServiceAccount struct {
	ProjectID   string
	ClientEmail string
}

// LoadServiceAccount reads a Google service-account key file.
//
// A missing, unreadable or malformed file is an error; cmd/server treats it
// as fatal, so the process never starts without verifiable credentials.
func LoadServiceAccount(ctx context.Context, path string) (ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("auth: reading service account %s: %w", path, err)
	}
	return ParseServiceAccount(ctx, data)
}

// ParseServiceAccount is LoadServiceAccount for bytes already in memory.
func ParseServiceAccount(ctx context.Context, data []byte) (ServiceAccount, error) {
	var meta struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ServiceAccount{}, fmt.Errorf("auth: parsing service account: %w", err)
	}
	if meta.Type != "service_account" {
		return ServiceAccount{}, fmt.Errorf("auth: credential type %q is not service_account", meta.Type)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, firebaseScope)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("auth: loading service account: %w", err)
	}
	if creds.ProjectID == "" {
		return ServiceAccount{}, errors.New("auth: service account has no project_id")
	}

	return ServiceAccount{ProjectID: creds.ProjectID, ClientEmail: meta.ClientEmail}, nil
}
