package video

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medimeet/telehealth-api/pkg/circuitbreaker"
)

const defaultAPIURL = "https://video.api.vonage.com"

type VonageConfig struct {
	ApplicationID string
	PrivateKeyPEM string
	APIURL        string
}

// VonageProvider creates routed media sessions via the Vonage video REST API
// and mints client tokens locally. Both the application credential and the
// client tokens are RS256 JWTs signed with the application private key.
type VonageProvider struct {
	applicationID string
	privateKey    *rsa.PrivateKey
	apiURL        string
	client        *http.Client
	cb            *circuitbreaker.CircuitBreaker
}

func NewVonageProvider(cfg VonageConfig) (*VonageProvider, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse video private key: %w", err)
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &VonageProvider{
		applicationID: cfg.ApplicationID,
		privateKey:    key,
		apiURL:        apiURL,
		client:        &http.Client{Timeout: 10 * time.Second},
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "video-provider",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
	}, nil
}

func (p *VonageProvider) applicationJWT() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"application_id": p.applicationID,
		"iat":            now.Unix(),
		"exp":            now.Add(5 * time.Minute).Unix(),
		"jti":            uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

func (p *VonageProvider) CreateSession(ctx context.Context) (string, error) {
	appJWT, err := p.applicationJWT()
	if err != nil {
		return "", fmt.Errorf("failed to sign application token: %w", err)
	}

	form := url.Values{}
	form.Set("mediaMode", "routed")

	var sessionID string
	err = p.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.apiURL+"/session/create", strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("failed to build session request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+appJWT)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("session create request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("session create returned status %d: %s", resp.StatusCode, body)
		}

		var sessions []struct {
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
			return fmt.Errorf("failed to decode session response: %w", err)
		}
		if len(sessions) == 0 || sessions[0].SessionID == "" {
			return fmt.Errorf("session create returned no session")
		}

		sessionID = sessions[0].SessionID
		return nil
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// GenerateToken mints a client token locally; no network call is involved.
func (p *VonageProvider) GenerateToken(sessionID string, opts TokenOptions) (string, error) {
	now := time.Now()
	role := opts.Role
	if role == "" {
		role = "publisher"
	}

	claims := jwt.MapClaims{
		"application_id":  p.applicationID,
		"session_id":      sessionID,
		"role":            role,
		"connection_data": opts.Data,
		"scope":           "session.connect",
		"iat":             now.Unix(),
		"exp":             opts.ExpiresAt.Unix(),
		"jti":             uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign client token: %w", err)
	}
	return token, nil
}
