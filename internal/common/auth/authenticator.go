// Package auth authenticates inbound requests before they reach the
// pipeline. Failures are security violations and are never audited as
// normal requests.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/errors"
)

const (
	ModeAPIKey   = "api_key"
	ModeKeycloak = "keycloak"

	HeaderAPIKey = "X-API-Key"
)

// Principal identifies the authenticated caller. Actor is written to the
// audit record.
type Principal struct {
	Actor  string
	Method string
}

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Principal, error)
}

// New builds the authenticator selected by cfg.Mode.
func New(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Mode {
	case "", ModeAPIKey:
		a, err := NewAPIKeyAuthenticator(cfg.APIKeys)
		if err != nil {
			return nil, err
		}
		return a, nil
	case ModeKeycloak:
		kc := cfg.Keycloak
		return NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret), nil
	}
	return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
}

// APIKeyAuthenticator matches the X-API-Key header against configured
// actor keys.
type APIKeyAuthenticator struct {
	actors []string
	keys   [][]byte
}

// NewAPIKeyAuthenticator takes a map of actor name to key.
func NewAPIKeyAuthenticator(keys map[string]string) (*APIKeyAuthenticator, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("api_key auth requires at least one key")
	}
	a := &APIKeyAuthenticator{}
	actors := make([]string, 0, len(keys))
	for actor := range keys {
		actors = append(actors, actor)
	}
	sort.Strings(actors)
	for _, actor := range actors {
		if keys[actor] == "" {
			return nil, fmt.Errorf("empty api key for actor %q", actor)
		}
		a.actors = append(a.actors, actor)
		a.keys = append(a.keys, []byte(keys[actor]))
	}
	return a, nil
}

func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Principal, error) {
	presented := r.Header.Get(HeaderAPIKey)
	if presented == "" {
		presented = bearerToken(r)
	}
	if presented == "" {
		return Principal{}, errors.NewSecurityViolationError("missing api key")
	}

	// Compare against every key so timing does not reveal which actor matched.
	matched := -1
	for i, key := range a.keys {
		if subtle.ConstantTimeCompare([]byte(presented), key) == 1 {
			matched = i
		}
	}
	if matched < 0 {
		return Principal{}, errors.NewSecurityViolationError("invalid api key")
	}
	return Principal{Actor: a.actors[matched], Method: ModeAPIKey}, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
