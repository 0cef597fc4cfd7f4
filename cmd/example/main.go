package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesprial/go-reddift"
	"github.com/jamesprial/go-reddift/pkg/config"
	"github.com/jamesprial/go-reddift/pkg/types"
)

func main() {
	configPath := flag.String("config", "reddift.toml", "application manifest")
	user := flag.String("user", "", "account stored by reddift-login")
	subreddit := flag.String("subreddit", "golang", "subreddit to read")
	flag.Parse()

	if *user == "" {
		log.Fatal("-user is required; run reddift-login first")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	manifest, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}

	// Route structured logs to stderr; adjust the level as needed.
	cfg := reddift.ConfigFromManifest(manifest)
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	client, err := reddift.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Restore(ctx, *user); err != nil {
		log.Fatalf("No stored login for %s: %v", *user, err)
	}

	me, err := client.Me(ctx)
	if err != nil {
		log.Fatalf("Failed to get user info: %v", err)
	}
	fmt.Printf("Authenticated as /u/%s (link karma %d, comment karma %d)\n", me.Name, me.LinkKarma, me.CommentKarma)

	needs, err := client.NeedsCAPTCHA(ctx)
	if err != nil {
		log.Printf("Failed to check CAPTCHA requirement: %v", err)
	} else {
		fmt.Printf("CAPTCHA required to post: %v\n", needs)
	}

	hot, err := client.GetHot(ctx, &types.PostsRequest{Subreddit: *subreddit, Pagination: types.Pagination{Limit: 5}})
	if err != nil {
		log.Fatalf("Failed to get hot posts: %v", err)
	}
	fmt.Printf("\nHot posts from r/%s:\n", *subreddit)
	for i, post := range hot.Posts {
		fmt.Printf("%d. %s (score: %d, comments: %d)\n", i+1, post.Title, post.Score, post.NumComments)
	}
	if len(hot.Posts) == 0 {
		return
	}

	first := hot.Posts[0]
	comments, err := client.GetComments(ctx, &types.CommentsRequest{
		Subreddit:  *subreddit,
		PostID:     first.ID,
		Pagination: types.Pagination{Limit: 20},
	})
	if err != nil {
		log.Fatalf("Failed to get comments: %v", err)
	}

	tree := reddift.NewCommentTree(comments.Comments)
	fmt.Printf("\n%q has %d loaded comments, %d levels deep, %d more to load\n",
		first.Title, tree.Count(), tree.GetDepth(), len(comments.MoreIDs))

	it := reddift.NewCommentIterator(comments.Comments, &reddift.TraversalOptions{MaxDepth: 1})
	for shown := 0; shown < 5 && it.HasNext(); shown++ {
		c, err := it.Next()
		if err != nil {
			break
		}
		fmt.Printf("  - %s: %.80s\n", c.Author, c.Body)
	}

	if len(comments.MoreIDs) > 0 {
		more := comments.MoreIDs[:min(len(comments.MoreIDs), 10)]
		loaded, err := client.GetMoreComments(ctx, &types.MoreCommentsRequest{
			LinkID:     first.ID,
			CommentIDs: more,
			Sort:       "best",
		})
		if err != nil {
			log.Printf("Failed to load more comments: %v", err)
		} else {
			fmt.Printf("Loaded %d additional comments\n", len(loaded))
		}
	}
}
