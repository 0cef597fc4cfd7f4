package reddift

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jamesprial/go-reddift/internal"
	"github.com/jamesprial/go-reddift/pkg/config"
	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/result"
	"github.com/jamesprial/go-reddift/pkg/store"
	"github.com/jamesprial/go-reddift/pkg/types"
)

const (
	// DefaultBaseURL is the default Reddit API base URL
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the default Reddit OAuth base URL
	DefaultAuthURL = internal.DefaultAuthURL
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "golang:go-reddift:v0.1.0"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

// RateLimitConfig controls client-side request throttling.
type RateLimitConfig = internal.RateLimitConfig

// AuthState is the lifecycle position of a client's credential.
type AuthState = internal.AuthState

const (
	StateUnauthenticated = internal.StateUnauthenticated
	StatePendingExchange = internal.StatePendingExchange
	StateAuthenticated   = internal.StateAuthenticated
	StatePendingRefresh  = internal.StatePendingRefresh
	StateRevoked         = internal.StateRevoked
)

// Config holds the configuration for the Reddit client.
//
// Reddit installed apps authorize with the code flow: send the user to
// AuthCodeURL, then hand the redirect Reddit sends back to ReceiveRedirect.
//
//	config := &reddift.Config{
//		ClientID:    "your-client-id",
//		RedirectURI: "http://localhost:8080/callback",
//		Scopes:      []string{"identity", "read"},
//		UserAgent:   "golang:com.example.app:v1.0 (by /u/yourusername)",
//	}
type Config struct {
	// ClientID identifies the app registered at reddit.com/prefs/apps.
	ClientID string
	// ClientSecret is empty for installed apps.
	ClientSecret string
	// RedirectURI must match the one registered for the app.
	RedirectURI string
	// Scopes requested during authorization.
	Scopes []string

	// UserAgent string to identify your application to Reddit.
	// Should follow format: "platform:app-id:version (by /u/username)"
	UserAgent string

	// BaseURL for the Reddit API. Defaults to DefaultBaseURL.
	BaseURL string
	// AuthURL for Reddit OAuth endpoints. Defaults to DefaultAuthURL.
	AuthURL string

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger

	// Keychain persists tokens keyed by username. Defaults to an in-memory store.
	Keychain store.Keychain

	// RateLimit overrides the request throttle. Optional.
	RateLimit *RateLimitConfig
}

// ConfigFromManifest builds a Config from a loaded application manifest,
// with tokens kept in the manifest's SQLite database.
func ConfigFromManifest(m config.Manifest) *Config {
	return &Config{
		ClientID:     m.ClientID,
		ClientSecret: m.ClientSecret,
		RedirectURI:  m.RedirectURI,
		Scopes:       m.Scopes,
		UserAgent:    m.UserAgent(),
		Keychain:     store.NewSQLiteKeychain(m.TokenDB),
	}
}

// Client is the main Reddit API client. Every endpoint runs the same
// pipeline: an authenticated request, status validation, JSON decoding and
// an extractor for that endpoint's envelope.
type Client struct {
	transport *internal.Client
	auth      *internal.Authorizer
	parser    *internal.Parser
	validator *internal.Validator
	logger    *slog.Logger
}

// NewClient validates config and returns an unauthenticated client.
// Authenticate with ReceiveRedirect or Restore before calling endpoints.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	cfg := *config

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Keychain == nil {
		cfg.Keychain = store.NewMemory()
	}

	validator := internal.NewValidator()
	if err := validator.ValidateUserAgent(cfg.UserAgent); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "UserAgent", Message: err.Error()}
	}

	transport, err := internal.NewClient(cfg.HTTPClient, cfg.BaseURL, cfg.UserAgent, cfg.RateLimit, cfg.Logger)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: err.Error()}
	}

	c := &Client{
		transport: transport,
		parser:    internal.NewParser(),
		validator: validator,
		logger:    cfg.Logger,
	}

	c.auth, err = internal.NewAuthorizer(internal.AuthorizerConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		AuthURL:      cfg.AuthURL,
		UserAgent:    cfg.UserAgent,
		HTTPClient:   cfg.HTTPClient,
		Keychain:     cfg.Keychain,
		Profile:      c.fetchProfile,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// AuthCodeURL returns the page the user visits to authorize this app.
func (c *Client) AuthCodeURL() string {
	return c.auth.AuthCodeURL()
}

// ReceiveRedirect completes authorization from the redirect URL Reddit sent
// the user back to. The resulting token is stored under the user's name.
func (c *Client) ReceiveRedirect(ctx context.Context, redirectURL string) (*types.OAuthToken, error) {
	return c.auth.ReceiveRedirect(ctx, redirectURL).Unwrap()
}

// ReceiveRedirectAsync is ReceiveRedirect delivered on a channel. Exactly
// one result is sent before the channel closes.
func (c *Client) ReceiveRedirectAsync(ctx context.Context, redirectURL string) <-chan result.Result[*types.OAuthToken] {
	return result.Go(ctx, func(ctx context.Context) result.Result[*types.OAuthToken] {
		return c.auth.ReceiveRedirect(ctx, redirectURL)
	})
}

// Restore authenticates with the token previously stored for username.
func (c *Client) Restore(ctx context.Context, username string) (*types.OAuthToken, error) {
	return c.auth.Restore(ctx, username).Unwrap()
}

// Revoke logs out: the token is revoked with Reddit and removed from storage.
func (c *Client) Revoke(ctx context.Context) error {
	return c.auth.Revoke(ctx)
}

// State reports where the client's credential is in its lifecycle.
func (c *Client) State() AuthState {
	return c.auth.State()
}

// Username returns the account the current token belongs to, if known.
func (c *Client) Username() string {
	return c.auth.Owner()
}

// IsConnected returns true if the client holds a token.
func (c *Client) IsConnected() bool {
	return c.auth.Current() != nil
}

// apiRequest describes one endpoint call. It is rebuilt for a retry, so
// bodies are kept as form values rather than readers.
type apiRequest struct {
	method string
	path   string
	query  url.Values
	form   url.Values
}

func (c *Client) newRequest(ctx context.Context, r apiRequest) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if r.form != nil {
		req, err = c.transport.NewFormRequest(ctx, r.path, r.form)
	} else {
		req, err = c.transport.NewRequest(ctx, r.method, r.path, nil)
	}
	if err != nil {
		return nil, err
	}
	if len(r.query) > 0 {
		req.URL.RawQuery = r.query.Encode()
	}
	return req, nil
}

// send performs r with tok and validates the status.
func (c *Client) send(ctx context.Context, r apiRequest, tok *types.OAuthToken) result.Result[[]byte] {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return result.Failure[[]byte](err)
	}
	return internal.ValidateStatus(c.transport.Do(req, tok.AccessToken))
}

// call performs r with the current token. A 401 forces one refresh and a
// single retry; any other failure is final.
func (c *Client) call(ctx context.Context, r apiRequest) result.Result[[]byte] {
	return result.Bind(c.auth.Token(ctx), func(tok *types.OAuthToken) result.Result[[]byte] {
		body := c.send(ctx, r, tok)
		if code, ok := pkgerrs.StatusCode(body.Err()); !ok || code != http.StatusUnauthorized {
			return body
		}

		c.logger.InfoContext(ctx, "access token rejected, refreshing", slog.String("path", r.path))
		return result.Bind(c.auth.Refresh(ctx, tok), func(fresh *types.OAuthToken) result.Result[[]byte] {
			return c.send(ctx, r, fresh)
		})
	})
}

// callJSON is call followed by DecodeJSON.
func (c *Client) callJSON(ctx context.Context, r apiRequest) result.Result[any] {
	return result.Bind(c.call(ctx, r), internal.DecodeJSON)
}

// fetchProfile resolves the owner of tok. It uses tok directly so it can run
// before the token is current.
func (c *Client) fetchProfile(ctx context.Context, tok *types.OAuthToken) result.Result[*types.AccountData] {
	body := c.send(ctx, apiRequest{method: http.MethodGet, path: "api/v1/me"}, tok)
	return result.Bind(result.Bind(body, internal.DecodeJSON), internal.ParseThingT2)
}

// Me returns information about the authenticated user.
// Requires the identity scope.
func (c *Client) Me(ctx context.Context) (*types.AccountData, error) {
	tree := c.callJSON(ctx, apiRequest{method: http.MethodGet, path: "api/v1/me"})
	return result.Bind(tree, internal.ParseThingT2).Unwrap()
}

// NeedsCAPTCHA reports whether the user must solve a CAPTCHA before
// submitting.
func (c *Client) NeedsCAPTCHA(ctx context.Context) (bool, error) {
	body := c.call(ctx, apiRequest{method: http.MethodGet, path: "api/needs_captcha.json"})
	return result.Bind(body, internal.DecodeBooleanString).Unwrap()
}

// NewCAPTCHA requests a new challenge and returns its iden.
func (c *Client) NewCAPTCHA(ctx context.Context) (string, error) {
	tree := c.callJSON(ctx, apiRequest{
		method: http.MethodPost,
		path:   "api/new_captcha",
		form:   url.Values{"api_type": {"json"}},
	})
	return result.Bind(tree, internal.ParseCAPTCHAIden).Unwrap()
}

// CAPTCHAImage downloads and decodes the challenge for iden.
func (c *Client) CAPTCHAImage(ctx context.Context, iden string) (*types.CAPTCHAImage, error) {
	if err := c.validator.ValidateArticleID(iden); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "iden", Message: err.Error()}
	}
	body := c.call(ctx, apiRequest{method: http.MethodGet, path: "captcha/" + iden})
	return result.Bind(body, internal.DecodeCAPTCHAImage).Unwrap()
}

// PostComment replies to a link or comment and returns the new comment.
// Requires the submit scope.
func (c *Client) PostComment(ctx context.Context, request *types.CommentRequest) (*types.Comment, error) {
	if request == nil {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "comment request cannot be nil"}
	}
	if err := c.validator.ValidateFullname(request.ParentFullname); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateCommentText(request.Text); err != nil {
		return nil, err
	}

	form := url.Values{
		"api_type": {"json"},
		"thing_id": {request.ParentFullname},
		"text":     {request.Text},
	}
	if request.CAPTCHAIden != "" {
		form.Set("iden", request.CAPTCHAIden)
		form.Set("captcha", request.CAPTCHA)
	}

	tree := c.callJSON(ctx, apiRequest{method: http.MethodPost, path: "api/comment", form: form})
	return result.Bind(tree, internal.ParsePostedComment).Unwrap()
}

// GetSubreddit retrieves information about a specific subreddit.
func (c *Client) GetSubreddit(ctx context.Context, name string) (*types.SubredditData, error) {
	if err := c.validator.ValidateSubredditName(name); err != nil {
		return nil, err
	}

	tree := c.callJSON(ctx, apiRequest{method: http.MethodGet, path: "r/" + name + "/about"})
	obj := result.Bind(tree, internal.ParseListing)
	return result.Bind(obj, func(v any) result.Result[*types.SubredditData] {
		sub, ok := v.(*types.SubredditData)
		return result.FromOptional(sub, ok, pkgerrs.New(pkgerrs.KindParseThing, "response is not a subreddit"))
	}).Unwrap()
}

// GetHot retrieves hot posts from a subreddit or, with a nil request or an
// empty Subreddit, the front page.
func (c *Client) GetHot(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getPosts(ctx, "hot", request)
}

// GetNew retrieves new posts from a subreddit or the front page.
func (c *Client) GetNew(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getPosts(ctx, "new", request)
}

func (c *Client) getPosts(ctx context.Context, sort string, request *types.PostsRequest) (*types.PostsResponse, error) {
	var req types.PostsRequest
	if request != nil {
		req = *request
	}

	path := sort
	if req.Subreddit != "" {
		if err := c.validator.ValidateSubredditName(req.Subreddit); err != nil {
			return nil, err
		}
		path = "r/" + req.Subreddit + "/" + sort
	}
	if err := c.validator.ValidatePagination(&req.Pagination); err != nil {
		return nil, err
	}

	tree := c.callJSON(ctx, apiRequest{method: http.MethodGet, path: path, query: paginationQuery(req.Pagination)})
	listing := result.Bind(result.Bind(tree, internal.ParseListing), internal.ListingOf)

	return result.Map(listing, func(l *types.ListingData) *types.PostsResponse {
		return &types.PostsResponse{
			Posts:          c.parser.PostsFrom(l),
			AfterFullname:  l.AfterFullname,
			BeforeFullname: l.BeforeFullname,
		}
	}).Unwrap()
}

// GetComments retrieves a post and its comment tree. MoreIDs lists comments
// Reddit truncated; load them with GetMoreComments.
func (c *Client) GetComments(ctx context.Context, request *types.CommentsRequest) (*types.CommentsResponse, error) {
	if request == nil {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "comments request cannot be nil"}
	}
	if err := c.validator.ValidateSubredditName(request.Subreddit); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateArticleID(request.PostID); err != nil {
		return nil, err
	}
	if err := c.validator.ValidatePagination(&request.Pagination); err != nil {
		return nil, err
	}

	tree := c.callJSON(ctx, apiRequest{
		method: http.MethodGet,
		path:   "r/" + request.Subreddit + "/comments/" + request.PostID,
		query:  paginationQuery(request.Pagination),
	})
	article := result.Bind(tree, internal.SplitArticleResponse)

	return result.Bind(article, func(a internal.Article) result.Result[*types.CommentsResponse] {
		comments, moreIDs, err := c.parser.ExtractComments(a.Comments)
		if err != nil {
			return result.Failure[*types.CommentsResponse](pkgerrs.Wrap(pkgerrs.KindParseListingArticles, err))
		}

		resp := &types.CommentsResponse{Comments: comments, MoreIDs: moreIDs}
		if listing, err := c.parser.ParseListing(a.Comments); err == nil {
			resp.AfterFullname = listing.AfterFullname
			resp.BeforeFullname = listing.BeforeFullname
		}
		// the post listing is optional; Reddit omits it for some permalinks
		if a.Post != nil {
			if posts, err := c.parser.ExtractPosts(a.Post); err == nil && len(posts) > 0 {
				resp.Post = posts[0]
			}
		}
		return result.Success(resp)
	}).Unwrap()
}

// GetCommentsMultiple loads comments for several posts concurrently. Results
// keep the order of requests; the first failure is returned alongside the
// responses that succeeded.
func (c *Client) GetCommentsMultiple(ctx context.Context, requests []*types.CommentsRequest) ([]*types.CommentsResponse, error) {
	pending := make([]<-chan result.Result[*types.CommentsResponse], len(requests))
	for i, req := range requests {
		pending[i] = result.Go(ctx, func(ctx context.Context) result.Result[*types.CommentsResponse] {
			return result.From(c.GetComments(ctx, req))
		})
	}

	responses := make([]*types.CommentsResponse, len(requests))
	var firstErr error
	for i, ch := range pending {
		resp, err := result.Await(ctx, ch).Unwrap()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		responses[i] = resp
	}
	return responses, firstErr
}

// GetMoreComments loads comments that were truncated from a comment tree.
// LinkID may be given with or without its t3_ prefix.
func (c *Client) GetMoreComments(ctx context.Context, request *types.MoreCommentsRequest) ([]*types.Comment, error) {
	if request == nil {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "more comments request cannot be nil"}
	}

	linkID := types.Fullname(types.KindLink, request.LinkID)
	if err := c.validator.ValidateFullname(linkID); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateCommentIDs(request.CommentIDs); err != nil {
		return nil, err
	}

	form := url.Values{
		"api_type": {"json"},
		"link_id":  {linkID},
		"children": {strings.Join(request.CommentIDs, ",")},
	}
	if request.Sort != "" {
		form.Set("sort", request.Sort)
	}
	if request.Depth > 0 {
		form.Set("depth", strconv.Itoa(request.Depth))
	}
	if request.Limit > 0 {
		form.Set("limit_children", strconv.Itoa(request.Limit))
	}

	tree := c.callJSON(ctx, apiRequest{method: http.MethodPost, path: "api/morechildren", form: form})
	return result.Bind(tree, internal.ParseMoreChildren).Unwrap()
}

func paginationQuery(p types.Pagination) url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.After != "" {
		q.Set("after", p.After)
	}
	if p.Before != "" {
		q.Set("before", p.Before)
	}
	return q
}
