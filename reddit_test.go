package reddift

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/store"
	"github.com/jamesprial/go-reddift/pkg/types"
)

const (
	listingJSON = `{"kind":"Listing","data":{"after":"t3_p2","before":null,"children":[
		{"kind":"t3","data":{"id":"p1","name":"t3_p1","title":"First","score":10}},
		{"kind":"t3","data":{"id":"p2","name":"t3_p2","title":"Second","score":5}}]}}`

	articleJSON = `[
		{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"abc123","name":"t3_abc123","title":"Article"}}]}},
		{"kind":"Listing","data":{"after":"t1_c2","children":[
			{"kind":"t1","data":{"id":"c1","name":"t1_c1","author":"rob","body":"top","replies":{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{"id":"c3","name":"t1_c3","author":"ken","body":"reply","replies":""}}]}}}},
			{"kind":"t1","data":{"id":"c2","name":"t1_c2","author":"gopher","body":"second","replies":""}},
			{"kind":"more","data":{"id":"m1","name":"t1_m1","children":["c4","c5"]}}]}}]`

	moreJSON = `{"json":{"errors":[],"data":{"things":[
		{"kind":"t1","data":{"id":"c4","name":"t1_c4","body":"more one"}},
		{"kind":"t1","data":{"id":"c5","name":"t1_c5","body":"more two"}}]}}}`

	postedJSON = `{"json":{"errors":[],"data":{"things":[
		{"kind":"t1","data":{"id":"new1","name":"t1_new1","body":"hello","parent_id":"t3_abc123"}}]}}}`
)

// fakeReddit serves the OAuth and API endpoints from one server. Only the
// most recently issued access token is accepted by the API.
type fakeReddit struct {
	t *testing.T

	mu       sync.Mutex
	valid    string
	issued   int
	requests map[string]url.Values

	rejectAll bool
	truncate  bool
	refreshes atomic.Int32
	needs     string
}

func newFakeReddit(t *testing.T) (*fakeReddit, *httptest.Server) {
	f := &fakeReddit{t: t, requests: map[string]url.Values{}, needs: "true"}
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	return f, ts
}

func (f *fakeReddit) issue() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	f.valid = fmt.Sprintf("access-%d", f.issued)
	return f.valid
}

// rotate invalidates the current access token server side.
func (f *fakeReddit) rotate() {
	f.mu.Lock()
	f.valid = "rotated"
	f.mu.Unlock()
}

func (f *fakeReddit) form(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeReddit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}

	switch r.URL.Path {
	case "/api/v1/access_token":
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
		case "refresh_token":
			f.refreshes.Add(1)
		}
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer","expires_in":3600,"refresh_token":"refresh-1","scope":"identity read submit"}`, f.issue())
		return
	case "/api/v1/revoke_token":
		w.WriteHeader(http.StatusNoContent)
		return
	}

	f.mu.Lock()
	valid, reject, needs, truncate := f.valid, f.rejectAll, f.needs, f.truncate
	f.requests[r.URL.Path] = r.Form
	f.mu.Unlock()

	if reject || r.Header.Get("Authorization") != "bearer "+valid {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Unauthorized","error":401}`)
		return
	}

	switch r.URL.Path {
	case "/api/v1/me":
		fmt.Fprint(w, `{"name":"gopher","id":"u1","link_karma":42}`)
	case "/hot", "/r/golang/hot", "/r/golang/new":
		fmt.Fprint(w, listingJSON)
	case "/r/golang/comments/abc123":
		fmt.Fprint(w, articleJSON)
	case "/api/morechildren":
		fmt.Fprint(w, moreJSON)
	case "/api/comment":
		fmt.Fprint(w, postedJSON)
	case "/api/needs_captcha.json":
		if truncate {
			// the connection drops after a partial body
			w.Header().Set("Content-Length", "100")
			fmt.Fprint(w, needs[:2])
			return
		}
		fmt.Fprint(w, needs)
	case "/api/new_captcha":
		fmt.Fprint(w, `{"json":{"errors":[],"data":{"iden":"captcha42"}}}`)
	case "/captcha/captcha42":
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 2))); err != nil {
			f.t.Errorf("encode png: %v", err)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	case "/r/golang/about":
		fmt.Fprint(w, `{"kind":"t5","data":{"id":"2rc7j","name":"t5_2rc7j","display_name":"golang","subscribers":250000}}`)
	case "/r/gopher/about":
		fmt.Fprint(w, listingJSON)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, ts *httptest.Server, keychain store.Keychain) *Client {
	t.Helper()

	client, err := NewClient(&Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/callback",
		Scopes:       []string{"identity", "read", "submit"},
		UserAgent:    "golang:reddift-test:v1.0 (by /u/gopher)",
		BaseURL:      ts.URL,
		AuthURL:      ts.URL,
		HTTPClient:   ts.Client(),
		Keychain:     keychain,
		RateLimit:    &RateLimitConfig{RequestsPerMinute: 6000, Burst: 100},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// login runs the authorization code flow against the fake.
func login(t *testing.T, c *Client) {
	t.Helper()

	authURL, err := url.Parse(c.AuthCodeURL())
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}
	redirect := "http://localhost:8080/callback?" + url.Values{
		"state": {authURL.Query().Get("state")},
		"code":  {"good-code"},
	}.Encode()

	if _, err := c.ReceiveRedirect(context.Background(), redirect); err != nil {
		t.Fatalf("ReceiveRedirect: %v", err)
	}
}

func authedClient(t *testing.T) (*fakeReddit, *Client) {
	t.Helper()
	fake, ts := newFakeReddit(t)
	c := newTestClient(t, ts, store.NewMemory())
	login(t, c)
	return fake, c
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   *Config
		field string
	}{
		{name: "nil config", cfg: nil},
		{name: "missing client id", cfg: &Config{RedirectURI: "http://x/cb"}, field: "ClientID"},
		{name: "missing redirect", cfg: &Config{ClientID: "id"}, field: "RedirectURI"},
		{name: "bad user agent", cfg: &Config{ClientID: "id", RedirectURI: "http://x/cb", UserAgent: "a\r\nX-Evil: 1"}, field: "UserAgent"},
		{name: "bad base url", cfg: &Config{ClientID: "id", RedirectURI: "http://x/cb", BaseURL: "://nope"}, field: "BaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewClient(tt.cfg)
			var cfgErr *pkgerrs.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestUnauthenticatedCalls(t *testing.T) {
	t.Parallel()

	_, ts := newFakeReddit(t)
	c := newTestClient(t, ts, nil)

	if c.State() != StateUnauthenticated || c.IsConnected() {
		t.Fatalf("new client state = %v", c.State())
	}
	if _, err := c.Me(context.Background()); !pkgerrs.IsKind(err, pkgerrs.KindNotAuthenticated) {
		t.Errorf("Me before login = %v, want not authenticated", err)
	}
}

func TestLoginResolvesUser(t *testing.T) {
	t.Parallel()

	_, ts := newFakeReddit(t)
	keychain := store.NewMemory()
	c := newTestClient(t, ts, keychain)
	login(t, c)

	if c.State() != StateAuthenticated {
		t.Errorf("State() = %v", c.State())
	}
	if c.Username() != "gopher" {
		t.Errorf("Username() = %q", c.Username())
	}
	if diff := cmp.Diff([]string{"gopher"}, keychain.Keys()); diff != "" {
		t.Errorf("stored keys mismatch (-want +got):\n%s", diff)
	}

	// A second client restores the persisted login.
	other := newTestClient(t, ts, keychain)
	tok, err := other.Restore(context.Background(), "gopher")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if diff := cmp.Diff([]string{"identity", "read", "submit"}, tok.Scope); diff != "" {
		t.Errorf("scope mismatch (-want +got):\n%s", diff)
	}
	me, err := other.Me(context.Background())
	if err != nil || me.Name != "gopher" || me.LinkKarma != 42 {
		t.Errorf("Me() = %+v, %v", me, err)
	}
}

func TestReceiveRedirectAsync(t *testing.T) {
	t.Parallel()

	_, ts := newFakeReddit(t)
	c := newTestClient(t, ts, nil)

	authURL, _ := url.Parse(c.AuthCodeURL())
	redirect := "http://localhost:8080/callback?state=" + authURL.Query().Get("state") + "&code=bad-code"

	res := <-c.ReceiveRedirectAsync(context.Background(), redirect)
	if !pkgerrs.IsKind(res.Err(), pkgerrs.KindTokenExchange) {
		t.Fatalf("expected token exchange failure, got %v", res.Err())
	}
	var authErr *pkgerrs.AuthError
	if !errors.As(res.Err(), &authErr) || authErr.Code != "invalid_grant" {
		t.Errorf("expected invalid_grant AuthError, got %v", res.Err())
	}
	if c.IsConnected() {
		t.Error("failed exchange should not authenticate")
	}
}

func TestUnauthorizedRefreshesOnce(t *testing.T) {
	t.Parallel()

	fake, c := authedClient(t)
	fake.rotate()

	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me after rotation: %v", err)
	}
	if me.Name != "gopher" {
		t.Errorf("Name = %q", me.Name)
	}
	if got := fake.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
}

func TestUnauthorizedAfterRefreshFails(t *testing.T) {
	t.Parallel()

	fake, c := authedClient(t)
	fake.mu.Lock()
	fake.rejectAll = true
	fake.mu.Unlock()

	_, err := c.GetHot(context.Background(), nil)
	if code, ok := pkgerrs.StatusCode(err); !ok || code != http.StatusUnauthorized {
		t.Errorf("expected 401 HTTPStatus error, got %v", err)
	}
	if got := fake.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
}

func TestGetHot(t *testing.T) {
	t.Parallel()

	fake, c := authedClient(t)

	tests := []struct {
		name    string
		request *types.PostsRequest
		path    string
		query   url.Values
	}{
		{name: "front page", request: nil, path: "/hot", query: url.Values{}},
		{
			name:    "subreddit with pagination",
			request: &types.PostsRequest{Subreddit: "golang", Pagination: types.Pagination{Limit: 25, After: "t3_x"}},
			path:    "/r/golang/hot",
			query:   url.Values{"limit": {"25"}, "after": {"t3_x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.GetHot(context.Background(), tt.request)
			if err != nil {
				t.Fatalf("GetHot: %v", err)
			}
			if len(resp.Posts) != 2 || resp.Posts[0].Title != "First" {
				t.Errorf("posts = %+v", resp.Posts)
			}
			if resp.AfterFullname != "t3_p2" {
				t.Errorf("AfterFullname = %q", resp.AfterFullname)
			}
			if diff := cmp.Diff(tt.query, fake.form(tt.path)); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetNewIterator(t *testing.T) {
	t.Parallel()

	_, c := authedClient(t)

	posts, err := c.NewNewIterator(context.Background(), "golang").WithLimit(2).Collect(3)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// The fake always answers with the same page, so the third post is
	// the first post of the second page.
	want := []string{"p1", "p2", "p1"}
	if diff := cmp.Diff(want, postIDs(posts)); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
}

func TestGetComments(t *testing.T) {
	t.Parallel()

	_, c := authedClient(t)

	resp, err := c.GetComments(context.Background(), &types.CommentsRequest{Subreddit: "golang", PostID: "abc123"})
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}

	if resp.Post == nil || resp.Post.Title != "Article" {
		t.Errorf("Post = %+v", resp.Post)
	}
	if got := ids(NewCommentTree(resp.Comments).Flatten()); !cmp.Equal(got, []string{"c1", "c3", "c2"}) {
		t.Errorf("comment tree = %v", got)
	}
	if diff := cmp.Diff([]string{"c4", "c5"}, resp.MoreIDs); diff != "" {
		t.Errorf("MoreIDs mismatch (-want +got):\n%s", diff)
	}
	if resp.AfterFullname != "t1_c2" {
		t.Errorf("AfterFullname = %q", resp.AfterFullname)
	}
}

func TestGetCommentsValidation(t *testing.T) {
	t.Parallel()

	_, c := authedClient(t)

	tests := []struct {
		name string
		req  *types.CommentsRequest
	}{
		{name: "nil", req: nil},
		{name: "bad subreddit", req: &types.CommentsRequest{Subreddit: "a", PostID: "abc"}},
		{name: "bad post id", req: &types.CommentsRequest{Subreddit: "golang", PostID: "../x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var cfgErr *pkgerrs.ConfigError
			if _, err := c.GetComments(context.Background(), tt.req); !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestGetCommentsMultiple(t *testing.T) {
	t.Parallel()

	_, c := authedClient(t)

	requests := []*types.CommentsRequest{
		{Subreddit: "golang", PostID: "abc123"},
		{Subreddit: "golang", PostID: "missing"},
		{Subreddit: "golang", PostID: "abc123"},
	}
	responses, err := c.GetCommentsMultiple(context.Background(), requests)
	if code, ok := pkgerrs.StatusCode(err); !ok || code != http.StatusNotFound {
		t.Fatalf("expected 404 from the missing article, got %v", err)
	}
	if len(responses) != 3 || responses[0] == nil || responses[1] != nil || responses[2] == nil {
		t.Errorf("responses = %v", responses)
	}
}

func TestGetMoreComments(t *testing.T) {
	t.Parallel()

	fake, c := authedClient(t)

	comments, err := c.GetMoreComments(context.Background(), &types.MoreCommentsRequest{
		LinkID:     "abc123",
		CommentIDs: []string{"c4", "c5"},
		Sort:       "top",
		Depth:      3,
	})
	if err != nil {
		t.Fatalf("GetMoreComments: %v", err)
	}
	if len(comments) != 2 || comments[1].Body != "more two" {
		t.Errorf("comments = %+v", comments)
	}

	want := url.Values{
		"api_type": {"json"},
		"link_id":  {"t3_abc123"},
		"children": {"c4,c5"},
		"sort":     {"top"},
		"depth":    {"3"},
	}
	if diff := cmp.Diff(want, fake.form("/api/morechildren")); diff != "" {
		t.Errorf("form mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.GetMoreComments(context.Background(), &types.MoreCommentsRequest{LinkID: "abc123"}); err == nil {
		t.Error("expected error for empty CommentIDs")
	}
}

func TestPostComment(t *testing.T) {
	t.Parallel()

	fake, c := authedClient(t)

	comment, err := c.PostComment(context.Background(), &types.CommentRequest{
		ParentFullname: "t3_abc123",
		Text:           "hello",
		CAPTCHAIden:    "captcha42",
		CAPTCHA:        "ABCDEF",
	})
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if comment.ID != "new1" || comment.ParentID != "t3_abc123" {
		t.Errorf("comment = %+v", comment)
	}

	form := fake.form("/api/comment")
	if form.Get("thing_id") != "t3_abc123" || form.Get("iden") != "captcha42" || form.Get("captcha") != "ABCDEF" {
		t.Errorf("form = %v", form)
	}

	invalid := []*types.CommentRequest{
		nil,
		{ParentFullname: "t5_abc", Text: "x"},
		{ParentFullname: "t1_abc", Text: "   "},
		{ParentFullname: "t1_abc", Text: strings.Repeat("x", 10001)},
	}
	for _, req := range invalid {
		if _, err := c.PostComment(context.Background(), req); err == nil {
			t.Errorf("PostComment(%+v) should fail", req)
		}
	}
}

func TestCAPTCHA(t *testing.T) {
	t.Parallel()

	fake, c := authedClient(t)
	ctx := context.Background()

	needs, err := c.NeedsCAPTCHA(ctx)
	if err != nil || !needs {
		t.Fatalf("NeedsCAPTCHA = %v, %v", needs, err)
	}

	iden, err := c.NewCAPTCHA(ctx)
	if err != nil || iden != "captcha42" {
		t.Fatalf("NewCAPTCHA = %q, %v", iden, err)
	}

	img, err := c.CAPTCHAImage(ctx, iden)
	if err != nil {
		t.Fatalf("CAPTCHAImage: %v", err)
	}
	if img.Format != "png" || img.Image.Bounds().Dx() != 4 {
		t.Errorf("image = %s %v", img.Format, img.Image.Bounds())
	}

	fake.mu.Lock()
	fake.needs = "TRUE"
	fake.mu.Unlock()
	if _, err := c.NeedsCAPTCHA(ctx); !pkgerrs.IsKind(err, pkgerrs.KindCheckNeedsCAPTCHA) {
		t.Errorf("expected CheckNeedsCAPTCHA failure, got %v", err)
	}
}

func TestTruncatedBodyIsTransportFailure(t *testing.T) {
	t.Parallel()

	fake, c := authedClient(t)
	fake.mu.Lock()
	fake.truncate = true
	fake.mu.Unlock()

	_, err := c.NeedsCAPTCHA(context.Background())
	if !pkgerrs.IsKind(err, pkgerrs.KindHTTPStatus) {
		t.Fatalf("expected HTTPStatus failure, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("read error should be the cause, got %v", err)
	}
	if fake.refreshes.Load() != 0 {
		t.Errorf("refreshes = %d, want 0", fake.refreshes.Load())
	}
}

func TestGetSubreddit(t *testing.T) {
	t.Parallel()

	_, c := authedClient(t)

	sub, err := c.GetSubreddit(context.Background(), "golang")
	if err != nil {
		t.Fatalf("GetSubreddit: %v", err)
	}
	if sub.DisplayName != "golang" || sub.Subscribers != 250000 {
		t.Errorf("subreddit = %+v", sub)
	}

	if _, err := c.GetSubreddit(context.Background(), "gopher"); !pkgerrs.IsKind(err, pkgerrs.KindParseThing) {
		t.Errorf("listing for about page should fail with ParseThing, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	_, ts := newFakeReddit(t)
	keychain := store.NewMemory()
	c := newTestClient(t, ts, keychain)
	login(t, c)

	if err := c.Revoke(context.Background()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if c.State() != StateRevoked || c.IsConnected() {
		t.Errorf("after Revoke state = %v", c.State())
	}
	if keys := keychain.Keys(); len(keys) != 0 {
		t.Errorf("keychain still holds %v", keys)
	}
	if _, err := c.Me(context.Background()); !pkgerrs.IsKind(err, pkgerrs.KindNotAuthenticated) {
		t.Errorf("Me after Revoke = %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	_, c := authedClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	if _, err := c.GetHot(ctx, nil); err == nil {
		t.Error("expected error from canceled context")
	}
}
