package google

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	gsheet "google.golang.org/api/sheets/v4"
)

var (
	ErrCredentialsEmpty     = errors.New("credentials are empty")
	ErrCredentialsMalformed = errors.New("credentials are not valid JSON")
	ErrCredentialsType      = errors.New("credentials are not a service account key")
	ErrCredentialsMissing   = errors.New("credentials are missing required fields")
	ErrCredentialsTrailing  = errors.New("credentials contain data after the JSON object")
)

// ServiceAccount is the subset of a service account key file we rely on.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount decodes a service account key as a single JSON object
// and checks the fields needed to mint tokens. Anything else is rejected.
func ParseServiceAccount(data []byte) (ServiceAccount, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ServiceAccount{}, ErrCredentialsEmpty
	}

	var sa ServiceAccount
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&sa); err != nil {
		return ServiceAccount{}, fmt.Errorf("%w: %v", ErrCredentialsMalformed, err)
	}
	if dec.More() {
		return ServiceAccount{}, ErrCredentialsTrailing
	}
	if sa.Type != "service_account" {
		return ServiceAccount{}, fmt.Errorf("%w: type %q", ErrCredentialsType, sa.Type)
	}

	var missing []string
	if strings.TrimSpace(sa.ClientEmail) == "" {
		missing = append(missing, "client_email")
	}
	if !strings.Contains(sa.PrivateKey, "PRIVATE KEY") {
		missing = append(missing, "private_key")
	}
	if len(missing) > 0 {
		return ServiceAccount{}, fmt.Errorf("%w: %s", ErrCredentialsMissing, strings.Join(missing, ", "))
	}
	return sa, nil
}

// jwtConfig validates data and builds the token configuration for the
// spreadsheets scope.
func jwtConfig(data []byte) (*jwt.Config, ServiceAccount, error) {
	sa, err := ParseServiceAccount(data)
	if err != nil {
		return nil, ServiceAccount{}, err
	}
	conf, err := google.JWTConfigFromJSON(bytes.TrimSpace(data), gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, ServiceAccount{}, fmt.Errorf("parse service account key: %w", err)
	}
	return conf, sa, nil
}
