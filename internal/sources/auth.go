package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"github.com/ppiankov/gazette/internal/cache"
	"github.com/ppiankov/gazette/internal/model"
)

var (
	// ErrNoCredentials is returned when no client id/secret is configured for a source
	ErrNoCredentials = errors.New("no credentials configured for source")
	// ErrNoToken is returned when the exchange answers without a token
	ErrNoToken = errors.New("token exchange returned no token")
	// ErrTokenExpired is returned when the issued token is already past its exp claim
	ErrTokenExpired = errors.New("token exchange returned an expired token")
)

// expirySkew is subtracted from server-reported lifetimes
const expirySkew = 30 * time.Second

// Credentials are the client credentials used for a token exchange
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialProvider supplies client credentials by source id
type CredentialProvider interface {
	Credentials(sourceID string) (Credentials, error)
}

// EnvCredentials reads <id>.client_id and <id>.client_secret from viper, which
// resolves GAZETTE_<ID>_CLIENT_ID / GAZETTE_<ID>_CLIENT_SECRET from the environment
type EnvCredentials struct {
	v *viper.Viper
}

// NewEnvCredentials creates a provider over v (the global viper when nil)
func NewEnvCredentials(v *viper.Viper) *EnvCredentials {
	if v == nil {
		v = viper.GetViper()
	}
	return &EnvCredentials{v: v}
}

// Credentials implements CredentialProvider
func (e *EnvCredentials) Credentials(sourceID string) (Credentials, error) {
	id := strings.ToLower(sourceID)
	creds := Credentials{
		ClientID:     e.v.GetString(id + ".client_id"),
		ClientSecret: e.v.GetString(id + ".client_secret"),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return Credentials{}, fmt.Errorf("%s: %w", sourceID, ErrNoCredentials)
	}
	return creds, nil
}

// StaticCredentials is a fixed map of credentials
type StaticCredentials map[string]Credentials

// Credentials implements CredentialProvider
func (s StaticCredentials) Credentials(sourceID string) (Credentials, error) {
	creds, ok := s[sourceID]
	if !ok {
		return Credentials{}, fmt.Errorf("%s: %w", sourceID, ErrNoCredentials)
	}
	return creds, nil
}

// tokenResponse covers both token field spellings seen in the wild
type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	Token       string     `json:"token"`
	ExpiresIn   flexString `json:"expires_in"`
}

// Authenticator obtains bearer tokens for sources that require them and
// keeps them in the credential cache
type Authenticator struct {
	client *Client
	tokens *cache.CredentialCache
	creds  CredentialProvider
	now    func() time.Time
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(client *Client, tokens *cache.CredentialCache, creds CredentialProvider) *Authenticator {
	return &Authenticator{
		client: client,
		tokens: tokens,
		creds:  creds,
		now:    time.Now,
	}
}

// Token returns a valid token for desc, exchanging credentials on a miss
func (a *Authenticator) Token(ctx context.Context, desc model.SourceDescriptor) (string, error) {
	return a.tokens.Token(ctx, desc.ID, func(ctx context.Context) (string, time.Duration, error) {
		return a.exchange(ctx, desc)
	})
}

// Invalidate drops the cached token for a source
func (a *Authenticator) Invalidate(ctx context.Context, sourceID string) {
	_ = a.tokens.Invalidate(ctx, sourceID)
}

func (a *Authenticator) exchange(ctx context.Context, desc model.SourceDescriptor) (string, time.Duration, error) {
	creds, err := a.creds.Credentials(desc.ID)
	if err != nil {
		return "", 0, err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)

	body, err := a.client.PostForm(ctx, joinURL(desc.BaseURL, desc.AuthPath), form)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}

	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		return "", 0, ErrNoToken
	}

	if ttl := expiresIn(resp.ExpiresIn); ttl > 0 {
		return token, ttl, nil
	}

	ttl, err := jwtLifetime(token, a.now())
	if err != nil {
		return "", 0, err
	}
	// zero means the cache default applies
	return token, ttl, nil
}

func expiresIn(v flexString) time.Duration {
	var secs float64
	if _, err := fmt.Sscan(v.String(), &secs); err != nil || secs <= 0 {
		return 0
	}
	ttl := time.Duration(secs * float64(time.Second))
	if ttl > 2*expirySkew {
		ttl -= expirySkew
	}
	return ttl
}

// jwtLifetime reads the exp claim without verifying the signature; the
// source is the issuer and only the lifetime matters here. Opaque tokens
// and tokens without exp yield zero.
func jwtLifetime(token string, now time.Time) (time.Duration, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, nil
	}

	ttl := exp.Sub(now)
	if ttl <= 0 {
		return 0, ErrTokenExpired
	}
	if ttl > 2*expirySkew {
		ttl -= expirySkew
	}
	return ttl, nil
}
