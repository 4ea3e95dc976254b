package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/internal"
)

// ProviderGoogle is the provider name stored on linked users.
const ProviderGoogle = "google"

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleConfig configures the Google provider. Endpoint and UserInfoURL
// default to Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	Endpoint    oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
}

// Google runs the authorization code flow with PKCE against Google.
type Google struct {
	oauth       *oauth2.Config
	states      *StateStore
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogle returns a provider that parks pending requests in states.
func NewGoogle(cfg GoogleConfig, states *StateStore) (*Google, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("federation: google client id, secret and redirect url are required")
	}
	if states == nil {
		return nil, errors.New("federation: state store is required")
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = defaultUserInfoURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		states:      states,
		userInfoURL: userInfo,
		httpClient:  client,
	}, nil
}

// Name returns [ProviderGoogle].
func (g *Google) Name() string { return ProviderGoogle }

// AuthCodeURL starts a login and returns the consent page URL.
func (g *Google) AuthCodeURL(ctx context.Context) (string, error) {
	state, err := internal.NewState()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()
	if err := g.states.Save(ctx, state, verifier); err != nil {
		return "", err
	}
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier)), nil
}

type userInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange completes a login started by AuthCodeURL.
//
// An unknown or reused state and a code the provider rejects both return
// [authsvc.ErrInvalidToken]. Transport and provider faults wrap
// [authsvc.ErrFederationUnavailable].
func (g *Google) Exchange(ctx context.Context, code, state string) (authsvc.Identity, error) {
	if code == "" {
		return authsvc.Identity{}, &authsvc.ValidationError{Field: "code", Reason: "is required"}
	}

	verifier, err := g.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return authsvc.Identity{}, fmt.Errorf("%w: %v", authsvc.ErrInvalidToken, err)
		}
		return authsvc.Identity{}, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	tok, err := g.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
			return authsvc.Identity{}, fmt.Errorf("%w: %v", authsvc.ErrInvalidToken, err)
		}
		return authsvc.Identity{}, fmt.Errorf("%w: %v", authsvc.ErrFederationUnavailable, err)
	}

	info, err := g.fetchUserInfo(ctx, tok)
	if err != nil {
		return authsvc.Identity{}, fmt.Errorf("%w: %v", authsvc.ErrFederationUnavailable, err)
	}

	return authsvc.Identity{
		Provider:      ProviderGoogle,
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}

func (g *Google) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("userinfo: unexpected status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	if info.Subject == "" || info.Email == "" {
		return nil, errors.New("userinfo: missing sub or email")
	}
	return &info, nil
}
