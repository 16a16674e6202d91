// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"command-pipeline/internal/common/errors"
)

// KeycloakClient validates bearer tokens with the realm's introspection
// endpoint.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time
}

// IntrospectionResponse holds the fields used from Keycloak's token
// introspection endpoint.
type IntrospectionResponse struct {
	Active            bool   `json:"active"`
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	ClientID          string `json:"client_id"`
	Azp               string `json:"azp"`
	Expiry            int64  `json:"exp"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
	}
}

func (k *KeycloakClient) Authenticate(ctx context.Context, r *http.Request) (Principal, error) {
	token := bearerToken(r)
	if token == "" {
		return Principal{}, errors.NewSecurityViolationError("missing bearer token")
	}

	info, err := k.Introspect(ctx, token)
	if err != nil {
		return Principal{}, err
	}
	if !info.Active {
		return Principal{}, errors.NewSecurityViolationError("token is not active")
	}
	if info.Expiry > 0 && k.now().Unix() >= info.Expiry {
		return Principal{}, errors.NewSecurityViolationError("token expired")
	}

	actor := info.PreferredUsername
	for _, candidate := range []string{info.ClientID, info.Azp, info.Subject} {
		if actor != "" {
			break
		}
		actor = candidate
	}
	return Principal{Actor: actor, Method: ModeKeycloak}, nil
}

// Introspect asks Keycloak whether token is active.
func (k *KeycloakClient) Introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.NewExternalServiceError("keycloak",
			fmt.Errorf("introspection failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var out IntrospectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	return &out, nil
}
