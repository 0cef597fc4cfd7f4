package reddift

import (
	"context"
	"errors"

	"github.com/jamesprial/go-reddift/pkg/types"
)

// ErrIteratorDone is returned by Next once an iterator is exhausted.
var ErrIteratorDone = errors.New("no more items available")

const maxPageSize = 100

type listFunc func(context.Context, *types.PostsRequest) (*types.PostsResponse, error)

// PostIterator pages through a post listing, fetching the next page when
// the current one is used up.
type PostIterator struct {
	ctx       context.Context
	list      listFunc
	request   types.PostsRequest
	buffer    []*types.Post
	bufferIdx int
	hasMore   bool
	err       error
}

// NewHotIterator creates an iterator over hot posts. An empty subreddit
// iterates the front page.
func (c *Client) NewHotIterator(ctx context.Context, subreddit string) *PostIterator {
	return newPostIterator(ctx, subreddit, c.GetHot)
}

// NewNewIterator creates an iterator over new posts.
func (c *Client) NewNewIterator(ctx context.Context, subreddit string) *PostIterator {
	return newPostIterator(ctx, subreddit, c.GetNew)
}

func newPostIterator(ctx context.Context, subreddit string, list listFunc) *PostIterator {
	return &PostIterator{
		ctx:  ctx,
		list: list,
		request: types.PostsRequest{
			Subreddit:  subreddit,
			Pagination: types.Pagination{Limit: maxPageSize},
		},
		hasMore: true,
	}
}

// WithLimit sets the number of posts fetched per request, clamped to 1..100.
func (it *PostIterator) WithLimit(limit int) *PostIterator {
	it.request.Limit = min(max(limit, 1), maxPageSize)
	return it
}

// HasNext returns true if there may be more posts to iterate through.
func (it *PostIterator) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.bufferIdx < len(it.buffer) || it.hasMore
}

// Next returns the next post. It returns ErrIteratorDone when the listing
// is exhausted and the fetch error, sticky, when a page fails.
func (it *PostIterator) Next() (*types.Post, error) {
	for {
		if it.err != nil {
			return nil, it.err
		}

		if it.bufferIdx >= len(it.buffer) {
			if !it.hasMore {
				return nil, ErrIteratorDone
			}
			if err := it.fetch(); err != nil {
				it.err = err
				return nil, err
			}
			continue
		}

		post := it.buffer[it.bufferIdx]
		it.bufferIdx++
		if post != nil {
			return post, nil
		}
	}
}

func (it *PostIterator) fetch() error {
	resp, err := it.list(it.ctx, &it.request)
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("received nil response")
	}

	it.buffer = resp.Posts
	it.bufferIdx = 0
	it.request.After = resp.AfterFullname
	it.hasMore = len(resp.Posts) > 0 && resp.AfterFullname != ""
	return nil
}

// Error returns any error encountered during iteration.
func (it *PostIterator) Error() error {
	return it.err
}

// Reset restarts the iterator from the first page.
func (it *PostIterator) Reset() {
	it.buffer = nil
	it.bufferIdx = 0
	it.hasMore = true
	it.err = nil
	it.request.After = ""
	it.request.Before = ""
}

// Collect fetches remaining posts until the listing ends or maxPosts are
// gathered. A maxPosts of 0 or less means no limit.
func (it *PostIterator) Collect(maxPosts int) ([]*types.Post, error) {
	var posts []*types.Post
	for maxPosts <= 0 || len(posts) < maxPosts {
		post, err := it.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}
		if err != nil {
			return posts, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// TraversalOrder defines the order of tree traversal.
type TraversalOrder int

const (
	// DepthFirst traverses the tree depth-first (default).
	DepthFirst TraversalOrder = iota
	// BreadthFirst traverses the tree level by level.
	BreadthFirst
)

// TraversalOptions provides options for comment tree traversal.
type TraversalOptions struct {
	MaxDepth   int                       // Deepest reply level yielded, 0 = unlimited
	MinScore   int                       // Comments below this score are skipped with their replies
	FilterFunc func(*types.Comment) bool // Comments failing this are skipped, replies still visited
	Order      TraversalOrder
}

type queued struct {
	comment *types.Comment
	depth   int
}

// CommentIterator yields comments from a parsed comment tree.
type CommentIterator struct {
	pending []queued
	visited map[*types.Comment]bool
	options TraversalOptions
}

// NewCommentIterator creates an iterator over comments and their replies.
func NewCommentIterator(comments []*types.Comment, opts *TraversalOptions) *CommentIterator {
	it := &CommentIterator{visited: make(map[*types.Comment]bool)}
	if opts != nil {
		it.options = *opts
	}
	it.push(comments, 0)
	return it
}

// push queues comments so they come out in their listed order under
// either traversal.
func (it *CommentIterator) push(comments []*types.Comment, depth int) {
	if it.options.MaxDepth > 0 && depth > it.options.MaxDepth {
		return
	}
	if it.options.Order == BreadthFirst {
		for _, c := range comments {
			it.pending = append(it.pending, queued{c, depth})
		}
		return
	}
	for i := len(comments) - 1; i >= 0; i-- {
		it.pending = append(it.pending, queued{comments[i], depth})
	}
}

func (it *CommentIterator) pop() queued {
	var q queued
	if it.options.Order == BreadthFirst {
		q, it.pending = it.pending[0], it.pending[1:]
	} else {
		last := len(it.pending) - 1
		q, it.pending = it.pending[last], it.pending[:last]
	}
	return q
}

// HasNext reports whether unvisited comments remain. Filtered comments
// are counted, so Next may still return ErrIteratorDone.
func (it *CommentIterator) HasNext() bool {
	return len(it.pending) > 0
}

// Next returns the next comment, or ErrIteratorDone.
func (it *CommentIterator) Next() (*types.Comment, error) {
	for len(it.pending) > 0 {
		q := it.pop()
		c := q.comment
		if c == nil || it.visited[c] {
			continue
		}
		it.visited[c] = true

		if it.options.MinScore != 0 && c.Score < it.options.MinScore {
			continue
		}
		it.push(c.Replies, q.depth+1)

		if it.options.FilterFunc != nil && !it.options.FilterFunc(c) {
			continue
		}
		return c, nil
	}
	return nil, ErrIteratorDone
}
