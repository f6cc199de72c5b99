package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ProviderIdentity is the normalized identity claim fetched from a provider.
type ProviderIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// Provider is one third-party login option. The set is small and fixed
// (Google, Apple); each variant implements the same three capabilities.
type Provider interface {
	Name() string
	AuthCodeURL(state, redirectURI string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (ProviderTokens, error)
	FetchIdentity(ctx context.Context, tokens ProviderTokens) (ProviderIdentity, error)
}

// ProviderTokens holds the short-lived artifacts returned by the provider's
// token endpoint. They are used once to fetch the identity claim and then
// discarded.
type ProviderTokens struct {
	AccessToken string
	IDToken     string
}

// GoogleProvider implements the authorization-code flow against Google.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	client       *resty.Client

	authURL     string
	tokenURL    string
	userinfoURL string
}

func NewGoogleProvider(clientID, clientSecret string, timeout time.Duration) *GoogleProvider {
	return &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       resty.New().SetTimeout(timeout),
		authURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL:     "https://oauth2.googleapis.com/token",
		userinfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) AuthCodeURL(state, redirectURI string) string {
	params := url.Values{}
	params.Set("client_id", p.clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", "openid email profile")
	params.Set("state", state)
	return p.authURL + "?" + params.Encode()
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (ProviderTokens, error) {
	var body struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"code":          code,
			"grant_type":    "authorization_code",
			"redirect_uri":  redirectURI,
		}).
		SetResult(&body).
		Post(p.tokenURL)
	if err != nil {
		return ProviderTokens{}, fmt.Errorf("google token exchange: %w", err)
	}
	if resp.IsError() {
		return ProviderTokens{}, fmt.Errorf("google token exchange: status %d", resp.StatusCode())
	}
	if body.AccessToken == "" {
		return ProviderTokens{}, fmt.Errorf("google token exchange: empty access token")
	}
	return ProviderTokens{AccessToken: body.AccessToken, IDToken: body.IDToken}, nil
}

func (p *GoogleProvider) FetchIdentity(ctx context.Context, tokens ProviderTokens) (ProviderIdentity, error) {
	var body struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(tokens.AccessToken).
		SetResult(&body).
		Get(p.userinfoURL)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("google userinfo: %w", err)
	}
	if resp.IsError() {
		return ProviderIdentity{}, fmt.Errorf("google userinfo: status %d", resp.StatusCode())
	}
	if body.ID == "" {
		return ProviderIdentity{}, fmt.Errorf("google userinfo: missing subject")
	}
	return ProviderIdentity{
		Subject:       body.ID,
		Email:         strings.ToLower(body.Email),
		Name:          body.Name,
		EmailVerified: body.VerifiedEmail,
	}, nil
}

// AppleProvider implements Sign in with Apple. Apple returns the identity
// inside the ID token rather than from a userinfo endpoint.
type AppleProvider struct {
	clientID     string
	clientSecret string
	client       *resty.Client

	authURL  string
	tokenURL string
}

func NewAppleProvider(clientID, clientSecret string, timeout time.Duration) *AppleProvider {
	return &AppleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       resty.New().SetTimeout(timeout),
		authURL:      "https://appleid.apple.com/auth/authorize",
		tokenURL:     "https://appleid.apple.com/auth/token",
	}
}

func (p *AppleProvider) Name() string { return "apple" }

func (p *AppleProvider) AuthCodeURL(state, redirectURI string) string {
	params := url.Values{}
	params.Set("client_id", p.clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("response_mode", "form_post")
	params.Set("scope", "name email")
	params.Set("state", state)
	return p.authURL + "?" + params.Encode()
}

func (p *AppleProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (ProviderTokens, error) {
	var body struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"code":          code,
			"grant_type":    "authorization_code",
			"redirect_uri":  redirectURI,
		}).
		SetResult(&body).
		Post(p.tokenURL)
	if err != nil {
		return ProviderTokens{}, fmt.Errorf("apple token exchange: %w", err)
	}
	if resp.IsError() {
		return ProviderTokens{}, fmt.Errorf("apple token exchange: status %d", resp.StatusCode())
	}
	if body.IDToken == "" {
		return ProviderTokens{}, fmt.Errorf("apple token exchange: empty id token")
	}
	return ProviderTokens{AccessToken: body.AccessToken, IDToken: body.IDToken}, nil
}

func (p *AppleProvider) FetchIdentity(_ context.Context, tokens ProviderTokens) (ProviderIdentity, error) {
	payload, err := decodeJWTSection(tokens.IDToken, 1)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("apple id token: %w", err)
	}
	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ProviderIdentity{}, fmt.Errorf("apple id token claims: %w", err)
	}
	if claims.Subject == "" {
		return ProviderIdentity{}, fmt.Errorf("apple id token: missing subject")
	}
	return ProviderIdentity{
		Subject:       claims.Subject,
		Email:         strings.ToLower(claims.Email),
		EmailVerified: claims.EmailVerified,
	}, nil
}

func decodeJWTSection(token string, index int) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) <= index {
		return nil, fmt.Errorf("jwt parts")
	}
	return base64.RawURLEncoding.DecodeString(parts[index])
}
