package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/types"
)

const (
	// Subreddit name constraints
	minSubredditLength = 3
	maxSubredditLength = 21

	// Pagination constraints
	maxPaginationLimit = 100

	// ID constraints
	maxCommentIDs = 100
	maxIDLength   = 100

	maxUserAgentLength = 256
	maxCommentLength   = 10000
)

// Validator checks request parameters before they reach the network.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSubredditName checks a subreddit name against Reddit's naming rules.
func (v *Validator) ValidateSubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if len(name) < minSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name must be at least %d characters", minSubredditLength)}
	}
	if len(name) > maxSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name cannot exceed %d characters", maxSubredditLength)}
	}
	if name[0] == '_' || name[len(name)-1] == '_' {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot start or end with underscore"}
	}

	prevWasUnderscore := false
	for i, ch := range name {
		if !isBase36(ch) && ch != '_' {
			return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name contains invalid character '%c' at position %d", ch, i)}
		}
		if ch == '_' && prevWasUnderscore {
			return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot contain consecutive underscores"}
		}
		prevWasUnderscore = ch == '_'
	}
	return nil
}

// ValidatePagination checks listing pagination parameters.
func (v *Validator) ValidatePagination(pagination *types.Pagination) error {
	if pagination == nil {
		return nil
	}
	if pagination.After != "" && pagination.Before != "" {
		return &pkgerrs.ConfigError{Field: "pagination", Message: "cannot set both After and Before pagination parameters"}
	}
	if pagination.Limit < 0 {
		return &pkgerrs.ConfigError{Field: "pagination.Limit", Message: "limit cannot be negative"}
	}
	if pagination.Limit > maxPaginationLimit {
		return &pkgerrs.ConfigError{Field: "pagination.Limit", Message: fmt.Sprintf("limit cannot exceed %d", maxPaginationLimit)}
	}
	return nil
}

// ValidateCommentIDs checks the children requested from api/morechildren.
func (v *Validator) ValidateCommentIDs(ids []string) error {
	if len(ids) == 0 {
		return &pkgerrs.ConfigError{Field: "CommentIDs", Message: "at least one comment ID is required"}
	}
	if len(ids) > maxCommentIDs {
		return &pkgerrs.ConfigError{Field: "CommentIDs", Message: fmt.Sprintf("cannot request more than %d comment IDs at once (got %d)", maxCommentIDs, len(ids))}
	}

	for i, id := range ids {
		if err := validateID(id); err != nil {
			return &pkgerrs.ConfigError{
				Field:   fmt.Sprintf("CommentIDs[%d]", i),
				Message: fmt.Sprintf("invalid comment ID at index %d: %v", i, err),
			}
		}
	}
	return nil
}

// ValidateArticleID checks a bare base36 post ID such as "abc123".
func (v *Validator) ValidateArticleID(id string) error {
	if err := validateID(id); err != nil {
		return &pkgerrs.ConfigError{Field: "PostID", Message: err.Error()}
	}
	return nil
}

// ValidateFullname checks a type-prefixed ID such as "t3_abc123". Only
// comment and link fullnames can be replied to.
func (v *Validator) ValidateFullname(fullname string) error {
	prefix, id, ok := strings.Cut(fullname, "_")
	if !ok || (prefix != types.KindComment && prefix != types.KindLink) {
		return &pkgerrs.ConfigError{Field: "ParentFullname", Message: fmt.Sprintf("%q is not a t1_ or t3_ fullname", fullname)}
	}
	if err := validateID(id); err != nil {
		return &pkgerrs.ConfigError{Field: "ParentFullname", Message: err.Error()}
	}
	return nil
}

// ValidateCommentText checks the markdown body of a new comment.
func (v *Validator) ValidateCommentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &pkgerrs.ConfigError{Field: "Text", Message: "comment text cannot be empty"}
	}
	if len(text) > maxCommentLength {
		return &pkgerrs.ConfigError{Field: "Text", Message: fmt.Sprintf("comment text cannot exceed %d bytes", maxCommentLength)}
	}
	return nil
}

// ValidateUserAgent rejects User-Agent values that could inject headers.
func (v *Validator) ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return fmt.Errorf("user agent cannot be empty")
	}
	if strings.ContainsAny(ua, "\r\n") {
		return fmt.Errorf("user agent cannot contain newline characters")
	}
	if len(ua) > maxUserAgentLength {
		return fmt.Errorf("user agent too long (max %d characters)", maxUserAgentLength)
	}
	return nil
}

// validateID checks a base36 Reddit ID.
func validateID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("ID cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("ID too long (max %d characters)", maxIDLength)
	}
	for _, char := range id {
		if !isBase36(char) {
			return fmt.Errorf("ID contains invalid character: %c (only alphanumeric allowed)", char)
		}
	}
	return nil
}

func isBase36(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
