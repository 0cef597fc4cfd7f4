package internal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/result"
	"github.com/jamesprial/go-reddift/pkg/store"
	"github.com/jamesprial/go-reddift/pkg/types"
)

const (
	DefaultAuthURL = "https://www.reddit.com/"

	authorizePath   = "api/v1/authorize"
	tokenPath       = "api/v1/access_token"
	revokePath      = "api/v1/revoke_token"
	expiryDelta     = 60 * time.Second
	refreshFlightID = "refresh"
)

// AuthState is the lifecycle position of an Authorizer.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StatePendingExchange
	StateAuthenticated
	StatePendingRefresh
	StateRevoked
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePendingExchange:
		return "pending_exchange"
	case StateAuthenticated:
		return "authenticated"
	case StatePendingRefresh:
		return "pending_refresh"
	case StateRevoked:
		return "revoked"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ProfileFunc resolves the account that owns tok. The account name is the
// key the token is persisted under.
type ProfileFunc func(ctx context.Context, tok *types.OAuthToken) result.Result[*types.AccountData]

// AuthorizerConfig configures NewAuthorizer.
type AuthorizerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// AuthURL is the site hosting the authorize and token endpoints.
	// Defaults to DefaultAuthURL.
	AuthURL    string
	UserAgent  string
	HTTPClient *http.Client
	Keychain   store.Keychain
	Profile    ProfileFunc
	Logger     *slog.Logger
	// Now is used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Authorizer owns the OAuth2 credential: it exchanges authorization codes,
// refreshes expiring tokens and persists them under the owning username.
type Authorizer struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	userAgent  string
	revokeURL  string
	keychain   store.Keychain
	profile    ProfileFunc
	logger     *slog.Logger
	now        func() time.Time

	mu           sync.RWMutex
	token        *types.OAuthToken
	owner        string
	state        AuthState
	pendingState string

	// netMu keeps at most one exchange or refresh on the wire.
	netMu  sync.Mutex
	flight singleflight.Group
}

// NewAuthorizer validates cfg and returns an Unauthenticated Authorizer.
func NewAuthorizer(cfg AuthorizerConfig) (*Authorizer, error) {
	if cfg.ClientID == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "is required"}
	}
	if cfg.RedirectURI == "" {
		return nil, &pkgerrs.ConfigError{Field: "RedirectURI", Message: "is required"}
	}
	if cfg.Profile == nil {
		return nil, &pkgerrs.ConfigError{Field: "Profile", Message: "is required"}
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	base, err := url.Parse(authURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: err.Error()}
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	withAgent := *httpClient
	withAgent.Transport = &userAgentTransport{base: transport, userAgent: cfg.UserAgent}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Authorizer{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base.JoinPath(authorizePath).String(),
				TokenURL:  base.JoinPath(tokenPath).String(),
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: &withAgent,
		userAgent:  cfg.UserAgent,
		revokeURL:  base.JoinPath(revokePath).String(),
		keychain:   cfg.Keychain,
		profile:    cfg.Profile,
		logger:     logger,
		now:        now,
	}, nil
}

// State returns the current lifecycle state.
func (a *Authorizer) State() AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Owner returns the username the current token belongs to, or "" when it
// has not been resolved.
func (a *Authorizer) Owner() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner
}

// Current returns the retained token without refreshing it.
func (a *Authorizer) Current() *types.OAuthToken {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// AuthCodeURL returns the URL the user visits to grant access. Each call
// starts a new authorization; only the most recent state is accepted by
// ReceiveRedirect.
func (a *Authorizer) AuthCodeURL() string {
	state := randomState()

	a.mu.Lock()
	a.pendingState = state
	a.mu.Unlock()

	return a.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("duration", "permanent"))
}

// ReceiveRedirect completes an authorization from the redirect Reddit sent
// back. On success the token is retained, its owner resolved and the token
// persisted under the owner's name. A failed exchange leaves storage
// untouched and the previous token, if any, in place. A failed profile
// lookup or persistence write is returned even though the new token stays
// retained.
func (a *Authorizer) ReceiveRedirect(ctx context.Context, rawURL string) result.Result[*types.OAuthToken] {
	code, err := a.parseRedirect(rawURL)
	if err != nil {
		return result.Failure[*types.OAuthToken](err)
	}

	a.netMu.Lock()
	defer a.netMu.Unlock()

	a.mu.Lock()
	prevToken, prevOwner := a.token, a.owner
	a.state = StatePendingExchange
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "exchanging authorization code")

	tk, err := a.oauth.Exchange(a.clientContext(ctx), code)
	if err != nil {
		a.mu.Lock()
		a.token, a.owner = prevToken, prevOwner
		a.state = StateUnauthenticated
		if prevToken != nil {
			a.state = StateAuthenticated
		}
		a.mu.Unlock()
		a.logger.WarnContext(ctx, "authorization code exchange failed", slog.Any("error", err))
		return result.Failure[*types.OAuthToken](pkgerrs.Wrap(pkgerrs.KindTokenExchange, authError(err)))
	}

	tok := types.TokenFromOAuth2(tk)
	a.mu.Lock()
	a.token, a.owner = tok, ""
	a.state = StateAuthenticated
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "authorization code exchanged", slog.Any("scope", tok.Scope))
	if missing := missingScopes(a.oauth.Scopes, tok); len(missing) > 0 {
		a.logger.WarnContext(ctx, "requested scopes not granted", slog.Any("missing", missing))
	}

	profile := a.profile(ctx, tok)
	return result.Bind(profile, func(account *types.AccountData) result.Result[*types.OAuthToken] {
		a.mu.Lock()
		if a.token == tok {
			a.owner = account.Name
		}
		a.mu.Unlock()

		if err := a.persist(ctx, account.Name, tok); err != nil {
			a.logger.WarnContext(ctx, "token persistence failed", slog.String("user", account.Name), slog.Any("error", err))
			return result.Failure[*types.OAuthToken](pkgerrs.Wrap(pkgerrs.KindTokenStore, err))
		}
		a.logger.InfoContext(ctx, "token stored", slog.String("user", account.Name))
		return result.Success(tok)
	})
}

func (a *Authorizer) parseRedirect(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", pkgerrs.Wrap(pkgerrs.KindOAuthRedirect, err)
	}
	q := u.Query()

	if e := q.Get("error"); e != "" {
		return "", pkgerrs.Wrap(pkgerrs.KindOAuthRedirect, &pkgerrs.AuthError{Code: e})
	}

	a.mu.Lock()
	expected := a.pendingState
	if expected != "" && q.Get("state") == expected {
		a.pendingState = ""
	}
	a.mu.Unlock()

	switch {
	case expected == "":
		return "", pkgerrs.Wrap(pkgerrs.KindOAuthRedirect, &pkgerrs.StateError{Operation: "receive redirect", Message: "no authorization in progress"})
	case q.Get("state") != expected:
		return "", pkgerrs.New(pkgerrs.KindOAuthRedirect, "state does not match the authorization request")
	}

	code := q.Get("code")
	if code == "" {
		return "", pkgerrs.New(pkgerrs.KindOAuthRedirect, "redirect carries no code")
	}
	return code, nil
}

// Token returns the retained token, refreshing it first when it expires
// within a minute.
func (a *Authorizer) Token(ctx context.Context) result.Result[*types.OAuthToken] {
	a.mu.RLock()
	tok := a.token
	a.mu.RUnlock()

	if tok == nil {
		return result.Failure[*types.OAuthToken](pkgerrs.New(pkgerrs.KindNotAuthenticated, "no token"))
	}
	if !tok.Expired(a.now(), expiryDelta) {
		return result.Success(tok)
	}
	return a.Refresh(ctx, tok)
}

// Refresh replaces stale with a fresh token. When the retained token has
// already moved on from stale the current one is returned without a network
// call. Concurrent callers share a single refresh; each still returns early
// if its own ctx ends.
func (a *Authorizer) Refresh(ctx context.Context, stale *types.OAuthToken) result.Result[*types.OAuthToken] {
	a.mu.RLock()
	cur := a.token
	a.mu.RUnlock()

	if cur == nil {
		return result.Failure[*types.OAuthToken](pkgerrs.New(pkgerrs.KindNotAuthenticated, "no token"))
	}
	if cur != stale && !cur.Expired(a.now(), expiryDelta) {
		return result.Success(cur)
	}
	if !cur.CanRefresh() {
		return result.Failure[*types.OAuthToken](pkgerrs.New(pkgerrs.KindTokenRefresh, "token has no refresh token"))
	}

	ch := a.flight.DoChan(refreshFlightID, func() (any, error) {
		return a.refresh(context.WithoutCancel(ctx), cur)
	})

	select {
	case <-ctx.Done():
		return result.Failure[*types.OAuthToken](pkgerrs.Wrap(pkgerrs.KindTokenRefresh, ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			return result.Failure[*types.OAuthToken](res.Err)
		}
		return result.Success(res.Val.(*types.OAuthToken))
	}
}

func (a *Authorizer) refresh(ctx context.Context, stale *types.OAuthToken) (*types.OAuthToken, error) {
	a.netMu.Lock()
	defer a.netMu.Unlock()

	a.mu.Lock()
	if cur := a.token; cur != nil && cur != stale && !cur.Expired(a.now(), expiryDelta) {
		a.mu.Unlock()
		return cur, nil
	}
	if a.token == nil {
		a.mu.Unlock()
		return nil, pkgerrs.New(pkgerrs.KindNotAuthenticated, "token was revoked")
	}
	prevState, owner := a.state, a.owner
	a.state = StatePendingRefresh
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "refreshing access token", slog.String("user", owner))

	// without an access token the source always goes to the token endpoint
	seed := stale.OAuth2()
	seed.AccessToken, seed.Expiry = "", time.Time{}
	src := a.oauth.TokenSource(a.clientContext(ctx), seed)
	tk, err := src.Token()
	if err != nil {
		a.mu.Lock()
		a.state = prevState
		a.mu.Unlock()
		a.logger.WarnContext(ctx, "token refresh failed", slog.Any("error", err))
		return nil, pkgerrs.Wrap(pkgerrs.KindTokenRefresh, authError(err))
	}

	fresh := types.TokenFromOAuth2(tk)
	if len(fresh.Scope) == 0 {
		fresh.Scope = stale.Scope
	}

	a.mu.Lock()
	a.token = fresh
	a.state = StateAuthenticated
	a.mu.Unlock()

	if owner != "" {
		if err := a.persist(ctx, owner, fresh); err != nil {
			a.logger.WarnContext(ctx, "refreshed token not persisted", slog.String("user", owner), slog.Any("error", err))
		}
	}
	return fresh, nil
}

// Restore loads the token persisted for name and makes it current.
func (a *Authorizer) Restore(ctx context.Context, name string) result.Result[*types.OAuthToken] {
	// an in-flight exchange would otherwise roll back over the restored token
	a.netMu.Lock()
	defer a.netMu.Unlock()

	var tok *types.OAuthToken
	err := a.withSession(ctx, func(s store.Session) error {
		var err error
		tok, err = s.Retrieve(ctx, name)
		return err
	})
	if err != nil {
		return result.Failure[*types.OAuthToken](pkgerrs.Wrap(pkgerrs.KindTokenStore, err))
	}

	a.mu.Lock()
	a.token, a.owner = tok, name
	a.state = StateAuthenticated
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "token restored", slog.String("user", name))

	return result.Success(tok)
}

// Revoke invalidates the token with Reddit, forgets it and removes its
// persisted entry. The revocation call is best effort; only a storage
// failure is returned.
func (a *Authorizer) Revoke(ctx context.Context) error {
	a.netMu.Lock()
	defer a.netMu.Unlock()

	a.mu.Lock()
	tok, owner := a.token, a.owner
	a.token, a.owner = nil, ""
	a.state = StateRevoked
	a.mu.Unlock()

	if tok != nil {
		if err := a.revokeRemote(ctx, tok); err != nil {
			a.logger.WarnContext(ctx, "token revocation failed", slog.Any("error", err))
		}
	}
	a.logger.InfoContext(ctx, "token revoked", slog.String("user", owner))

	if owner == "" {
		return nil
	}
	if err := a.withSession(ctx, func(s store.Session) error { return s.Delete(ctx, owner) }); err != nil {
		return pkgerrs.Wrap(pkgerrs.KindTokenStore, err)
	}
	return nil
}

func (a *Authorizer) revokeRemote(ctx context.Context, tok *types.OAuthToken) error {
	form := url.Values{}
	if tok.RefreshToken != "" {
		form.Set("token", tok.RefreshToken)
		form.Set("token_type_hint", "refresh_token")
	} else {
		form.Set("token", tok.AccessToken)
		form.Set("token_type_hint", "access_token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &pkgerrs.AuthError{Err: fmt.Errorf("failed to create revoke request: %w", err)}
	}
	req.SetBasicAuth(a.oauth.ClientID, a.oauth.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute revoke request: %w", err)}
	}
	defer resp.Body.Close()

	if !IsSuccessStatus(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (a *Authorizer) persist(ctx context.Context, key string, tok *types.OAuthToken) error {
	return a.withSession(ctx, func(s store.Session) error { return s.Store(ctx, key, tok) })
}

// withSession runs fn inside one keychain session and always closes it.
func (a *Authorizer) withSession(ctx context.Context, fn func(store.Session) error) (err error) {
	if a.keychain == nil {
		return errors.New("no keychain configured")
	}

	s, err := a.keychain.Open(ctx)
	if err != nil {
		return fmt.Errorf("open keychain: %w", err)
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()

	return fn(s)
}

func (a *Authorizer) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// authError flattens an oauth2 token endpoint failure into an AuthError.
func authError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return &pkgerrs.AuthError{Err: err}
	}

	ae := &pkgerrs.AuthError{Code: re.ErrorCode, Body: string(re.Body), Err: err}
	if re.Response != nil {
		ae.StatusCode = re.Response.StatusCode
	}
	return ae
}

// missingScopes lists the requested scopes tok was not granted. A token
// that reports no scope at all is taken at its word.
func missingScopes(requested []string, tok *types.OAuthToken) []string {
	if tok == nil || len(tok.Scope) == 0 {
		return nil
	}
	var missing []string
	for _, s := range requested {
		if !tok.HasScope(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
