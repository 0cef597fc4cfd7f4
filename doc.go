// Package reddift is a Reddit API client for installed apps using the OAuth2
// authorization code flow.
//
// # Overview
//
// Every endpoint runs the same pipeline: an authenticated request, status
// validation, JSON decoding and an extractor for that endpoint's envelope.
// Each stage yields a result.Result, so the first failure short-circuits
// the rest and surfaces as a *errors.Error whose Kind names the stage.
//
// # Features
//
//   - Authorization code flow with persisted, automatically refreshed tokens
//   - A single shared refresh when many requests find the token stale
//   - One refresh-and-retry when Reddit rejects an access token with 401
//   - Built-in rate limiting that honours Reddit's X-Ratelimit headers
//   - Structured logging via log/slog
//   - Comment trees, "load more" children and listing iterators
//   - CAPTCHA checks and comment submission
//
// # Quick Start
//
//	client, err := reddift.NewClient(&reddift.Config{
//		ClientID:    "your-client-id",
//		RedirectURI: "http://localhost:8080/callback",
//		Scopes:      []string{"identity", "read", "submit"},
//		UserAgent:   "golang:com.example.app:v1.0 (by /u/yourusername)",
//		Keychain:    store.NewSQLiteKeychain("tokens.db"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println("Visit:", client.AuthCodeURL())
//	// ... receive the redirect on RedirectURI ...
//	if _, err := client.ReceiveRedirect(ctx, redirectURL); err != nil {
//		log.Fatal(err)
//	}
//
// A later run resumes without the browser:
//
//	if _, err := client.Restore(ctx, "yourusername"); err != nil {
//		log.Fatal(err)
//	}
//
// # Authentication Lifecycle
//
// A client starts unauthenticated. ReceiveRedirect exchanges the code,
// resolves the account name through api/v1/me and stores the token under
// it. Restore loads a stored token. Tokens within a minute of expiry are
// refreshed before use; Revoke logs out and deletes the stored token.
// State reports the current position in that lifecycle.
//
// # Common Operations
//
// Fetch hot posts from a subreddit:
//
//	posts, err := client.GetHot(ctx, &types.PostsRequest{Subreddit: "golang", Pagination: types.Pagination{Limit: 25}})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, post := range posts.Posts {
//		fmt.Printf("%s (score: %d)\n", post.Title, post.Score)
//	}
//
// Retrieve a post with its comment tree:
//
//	resp, err := client.GetComments(ctx, &types.CommentsRequest{Subreddit: "golang", PostID: "abc123"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	tree := reddift.NewCommentTree(resp.Comments)
//	fmt.Printf("%d comments, %d more to load\n", tree.Count(), len(resp.MoreIDs))
//
// Reply, solving a CAPTCHA first when Reddit asks for one:
//
//	req := &types.CommentRequest{ParentFullname: "t3_abc123", Text: "Nice post"}
//	if needs, _ := client.NeedsCAPTCHA(ctx); needs {
//		req.CAPTCHAIden, _ = client.NewCAPTCHA(ctx)
//		img, _ := client.CAPTCHAImage(ctx, req.CAPTCHAIden)
//		req.CAPTCHA = solve(img)
//	}
//	comment, err := client.PostComment(ctx, req)
//
// # Error Handling
//
// Failures from the pipeline are *errors.Error values. Use errors.IsKind
// to branch on the stage and errors.StatusCode for HTTP failures:
//
//	if code, ok := errors.StatusCode(err); ok && code == http.StatusNotFound {
//		// handle missing post
//	}
//
// Invalid arguments are reported as *errors.ConfigError before any request
// is sent. OAuth failures carry an *errors.AuthError with Reddit's error
// code.
//
// # Rate Limiting
//
// The client throttles requests with a token bucket and defers further
// requests when Reddit reports an exhausted quota through its
// X-Ratelimit-Remaining and X-Ratelimit-Reset headers or a Retry-After.
package reddift
