package internal

import (
	"github.com/jamesprial/go-reddift/pkg/types"
)

// CommentTree walks a parsed comment forest through each comment's Replies.
type CommentTree struct {
	Comments []*types.Comment
}

// NewCommentTree creates a new CommentTree from a slice of comments.
func NewCommentTree(comments []*types.Comment) *CommentTree {
	return &CommentTree{Comments: comments}
}

// Flatten returns all comments in the tree in depth-first order.
func (ct *CommentTree) Flatten() []*types.Comment {
	var result []*types.Comment
	ct.Walk(func(c *types.Comment) {
		result = append(result, c)
	})
	return result
}

// Filter returns comments that match the given filter function.
func (ct *CommentTree) Filter(filterFunc func(*types.Comment) bool) []*types.Comment {
	var result []*types.Comment
	ct.Walk(func(c *types.Comment) {
		if filterFunc(c) {
			result = append(result, c)
		}
	})
	return result
}

// Find returns the first comment, depth-first, that matches condition.
func (ct *CommentTree) Find(condition func(*types.Comment) bool) *types.Comment {
	var found *types.Comment
	ct.walk(ct.Comments, 0, func(c *types.Comment, _ int) bool {
		if condition(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// GetByID returns a comment by its ID.
func (ct *CommentTree) GetByID(id string) *types.Comment {
	return ct.Find(func(c *types.Comment) bool {
		return c.ID == id
	})
}

// GetByAuthor returns all comments by a specific author.
func (ct *CommentTree) GetByAuthor(author string) []*types.Comment {
	return ct.Filter(func(c *types.Comment) bool {
		return c.Author == author
	})
}

// GetTopLevel returns only the top-level comments.
func (ct *CommentTree) GetTopLevel() []*types.Comment {
	return ct.Comments
}

// GetDepth returns the maximum reply depth; a forest of top-level comments
// with no replies has depth 0.
func (ct *CommentTree) GetDepth() int {
	maxDepth := 0
	ct.walk(ct.Comments, 0, func(_ *types.Comment, depth int) bool {
		maxDepth = max(maxDepth, depth)
		return true
	})
	return maxDepth
}

// Count returns the total number of comments in the tree.
func (ct *CommentTree) Count() int {
	n := 0
	ct.Walk(func(*types.Comment) { n++ })
	return n
}

// Walk applies fn to each comment in depth-first order.
func (ct *CommentTree) Walk(fn func(*types.Comment)) {
	ct.walk(ct.Comments, 0, func(c *types.Comment, _ int) bool {
		fn(c)
		return true
	})
}

// WalkDepth is Walk with each comment's depth. Returning false stops
// descent into that comment's replies.
func (ct *CommentTree) WalkDepth(fn func(c *types.Comment, depth int) bool) {
	for _, c := range ct.Comments {
		ct.descend(c, 0, fn)
	}
}

func (ct *CommentTree) descend(c *types.Comment, depth int, fn func(*types.Comment, int) bool) {
	if c == nil || !fn(c, depth) {
		return
	}
	for _, reply := range c.Replies {
		ct.descend(reply, depth+1, fn)
	}
}

// walk visits comments depth-first and stops everything once fn returns false.
func (ct *CommentTree) walk(comments []*types.Comment, depth int, fn func(*types.Comment, int) bool) bool {
	for _, c := range comments {
		if c == nil {
			continue
		}
		if !fn(c, depth) {
			return false
		}
		if !ct.walk(c.Replies, depth+1, fn) {
			return false
		}
	}
	return true
}
