package reddift

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jamesprial/go-reddift/pkg/types"
)

func testPost(id string) *types.Post {
	p := &types.Post{Title: "post " + id}
	p.ID = id
	p.Name = "t3_" + id
	return p
}

// pagedLister serves pages keyed by the After cursor they follow.
type pagedLister struct {
	pages    map[string]*types.PostsResponse
	requests []types.PostsRequest
	failOn   string
}

func (l *pagedLister) list(_ context.Context, req *types.PostsRequest) (*types.PostsResponse, error) {
	l.requests = append(l.requests, *req)
	if l.failOn != "" && req.After == l.failOn {
		return nil, errors.New("listing unavailable")
	}
	return l.pages[req.After], nil
}

func threePages() *pagedLister {
	return &pagedLister{pages: map[string]*types.PostsResponse{
		"":      {Posts: []*types.Post{testPost("a"), nil, testPost("b")}, AfterFullname: "t3_b"},
		"t3_b":  {Posts: []*types.Post{testPost("c")}, AfterFullname: "t3_c"},
		"t3_c":  {Posts: []*types.Post{testPost("d")}},
		"other": {},
	}}
}

func postIDs(posts []*types.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestPostIterator_Pages(t *testing.T) {
	t.Parallel()

	lister := threePages()
	it := newPostIterator(context.Background(), "golang", lister.list).WithLimit(2)

	posts, err := it.Collect(0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, postIDs(posts)); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}

	if len(lister.requests) != 3 {
		t.Fatalf("made %d requests, want 3", len(lister.requests))
	}
	for i, req := range lister.requests {
		if req.Subreddit != "golang" || req.Limit != 2 {
			t.Errorf("request %d = %+v", i, req)
		}
	}

	if it.HasNext() {
		t.Error("HasNext after exhaustion")
	}
	if _, err := it.Next(); !errors.Is(err, ErrIteratorDone) {
		t.Errorf("Next after exhaustion = %v, want ErrIteratorDone", err)
	}
}

func TestPostIterator_CollectLimit(t *testing.T) {
	t.Parallel()

	lister := threePages()
	posts, err := newPostIterator(context.Background(), "", lister.list).Collect(2)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, postIDs(posts)); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
	if len(lister.requests) != 1 {
		t.Errorf("made %d requests, want 1", len(lister.requests))
	}
}

func TestPostIterator_ErrorIsSticky(t *testing.T) {
	t.Parallel()

	lister := threePages()
	lister.failOn = "t3_b"
	it := newPostIterator(context.Background(), "golang", lister.list)

	posts, err := it.Collect(0)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(posts) != 2 {
		t.Errorf("got %d posts before failure, want 2", len(posts))
	}
	if it.HasNext() || !errors.Is(it.Error(), err) {
		t.Error("iterator should stop on error")
	}
	if _, again := it.Next(); again != err {
		t.Errorf("Next after failure = %v, want %v", again, err)
	}

	lister.failOn = ""
	it.Reset()
	if posts, err := it.Collect(0); err != nil || len(posts) != 4 {
		t.Errorf("after Reset got %d posts, err %v", len(posts), err)
	}
}

func TestPostIterator_WithLimitClamps(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want int }{{0, 1}, {-5, 1}, {50, 50}, {500, 100}}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			t.Parallel()
			it := newPostIterator(context.Background(), "", nil).WithLimit(tt.in)
			if it.request.Limit != tt.want {
				t.Errorf("WithLimit(%d) = %d, want %d", tt.in, it.request.Limit, tt.want)
			}
		})
	}
}

func TestPostIterator_NilResponse(t *testing.T) {
	t.Parallel()

	lister := &pagedLister{pages: map[string]*types.PostsResponse{}}
	if _, err := newPostIterator(context.Background(), "", lister.list).Next(); err == nil || errors.Is(err, ErrIteratorDone) {
		t.Errorf("Next = %v, want nil response error", err)
	}
}

func TestCommentIterator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts *TraversalOptions
		want []string
	}{
		{name: "default depth first", want: []string{"a", "b", "d", "c", "e"}},
		{name: "breadth first", opts: &TraversalOptions{Order: BreadthFirst}, want: []string{"a", "e", "b", "c", "d"}},
		{name: "max depth", opts: &TraversalOptions{MaxDepth: 1}, want: []string{"a", "b", "c", "e"}},
		{name: "min score prunes replies", opts: &TraversalOptions{MinScore: 4}, want: []string{"a", "b"}},
		{
			name: "filter keeps replies",
			opts: &TraversalOptions{FilterFunc: func(c *types.Comment) bool { return c.Author != "rob" }},
			want: []string{"a", "d", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			it := NewCommentIterator(sampleForest(), tt.opts)
			var got []string
			for it.HasNext() {
				c, err := it.Next()
				if errors.Is(err, ErrIteratorDone) {
					break
				}
				if err != nil {
					t.Fatalf("Next: %v", err)
				}
				got = append(got, c.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommentIterator_SkipsNilAndRepeats(t *testing.T) {
	t.Parallel()

	shared := testComment("x", "gopher", 1)
	it := NewCommentIterator([]*types.Comment{nil, shared, testComment("y", "rob", 1, shared)}, nil)

	var got []string
	for {
		c, err := it.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}
		got = append(got, c.ID)
	}
	if diff := cmp.Diff([]string{"x", "y"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCommentIterator_YieldsCommentsWithoutIDs(t *testing.T) {
	t.Parallel()

	anon := []*types.Comment{
		{Author: "a", Body: "one"},
		{Author: "b", Body: "two", Replies: []*types.Comment{{Author: "c", Body: "three"}}},
	}
	it := NewCommentIterator(anon, nil)

	var got []string
	for {
		c, err := it.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}
		got = append(got, c.Body)
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
