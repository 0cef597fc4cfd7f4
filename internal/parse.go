package internal

import (
	"encoding/json"
	"fmt"

	"github.com/jamesprial/go-reddift/pkg/types"
)

// Parser is the model construction boundary: it turns Things, and decoded
// JSON trees holding Things, into typed domain objects.
type Parser struct{}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ThingFrom rebuilds a Thing envelope from a decoded JSON tree. It reports
// false unless v is an object with a string "kind" and an object "data".
func (p *Parser) ThingFrom(v any) (*types.Thing, bool) {
	kind, ok := As[string](Lookup(v, "kind"))
	if !ok || kind == "" {
		return nil, false
	}
	data, ok := As[map[string]any](Lookup(v, "data"))
	if !ok {
		return nil, false
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}

	thing := &types.Thing{Kind: kind, Data: raw}
	thing.ID, _ = As[string](Lookup(data, "id"))
	thing.Name, _ = As[string](Lookup(data, "name"))
	return thing, true
}

// ConstructThing builds the typed object for any Thing-shaped tree.
func (p *Parser) ConstructThing(v any) (any, bool) {
	thing, ok := p.ThingFrom(v)
	if !ok {
		return nil, false
	}
	parsed, err := p.ParseThing(thing)
	if err != nil {
		return nil, false
	}
	return parsed, true
}

// ConstructComment builds a Comment from a t1 Thing tree.
func (p *Parser) ConstructComment(v any) (*types.Comment, bool) {
	thing, ok := p.ThingFrom(v)
	if !ok || thing.Kind != types.KindComment {
		return nil, false
	}
	comment, err := p.ParseComment(thing)
	if err != nil {
		return nil, false
	}
	return comment, true
}

// ConstructAccount builds an AccountData from either a bare account object
// (as returned by api/v1/me) or a t2 Thing. The account must have a name.
func (p *Parser) ConstructAccount(v any) (*types.AccountData, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}

	if kind, _ := As[string](Lookup(obj, "kind")); kind != "" {
		if kind != types.KindAccount {
			return nil, false
		}
		if obj, ok = As[map[string]any](Lookup(obj, "data")); !ok {
			return nil, false
		}
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, false
	}

	var account types.AccountData
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, false
	}
	if account.Name == "" {
		return nil, false
	}
	return &account, true
}

// ParseThing determines the type of a Thing and returns the appropriate typed struct.
func (p *Parser) ParseThing(thing *types.Thing) (interface{}, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}

	switch thing.Kind {
	case types.KindListing:
		return p.ParseListing(thing)
	case types.KindComment:
		return p.ParseComment(thing)
	case types.KindAccount:
		return p.ParseAccount(thing)
	case types.KindLink:
		return p.ParseLink(thing)
	case types.KindMessage:
		return p.ParseMessage(thing)
	case types.KindSubreddit:
		return p.ParseSubreddit(thing)
	case types.KindMore:
		return p.ParseMore(thing)
	default:
		return nil, fmt.Errorf("unknown kind: %s", thing.Kind)
	}
}

// ParseListing extracts a ListingData from a Thing of kind "Listing".
func (p *Parser) ParseListing(thing *types.Thing) (*types.ListingData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindListing {
		return nil, fmt.Errorf("expected Listing, got %s", thing.Kind)
	}

	var listing types.ListingData
	if err := json.Unmarshal(thing.Data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse Listing data: %w", err)
	}
	return &listing, nil
}

// ParseLink extracts a Post from a Thing of kind "t3".
func (p *Parser) ParseLink(thing *types.Thing) (*types.Post, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindLink {
		return nil, fmt.Errorf("expected t3 (Link), got %s", thing.Kind)
	}

	var post types.Post
	if err := json.Unmarshal(thing.Data, &post); err != nil {
		return nil, fmt.Errorf("failed to parse Link data: %w", err)
	}

	return &post, nil
}

// ParseComment extracts a Comment from a Thing of kind "t1". Its Replies
// hold the parsed reply tree.
func (p *Parser) ParseComment(thing *types.Thing) (*types.Comment, error) {
	comment, _, err := p.parseCommentTree(thing)
	return comment, err
}

// parseCommentTree parses a t1 Thing with its replies and returns the IDs
// of "more" stubs found anywhere beneath it.
func (p *Parser) parseCommentTree(thing *types.Thing) (*types.Comment, []string, error) {
	if thing == nil {
		return nil, nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindComment {
		return nil, nil, fmt.Errorf("expected t1 (Comment), got %s", thing.Kind)
	}

	var comment types.Comment
	if err := json.Unmarshal(thing.Data, &comment); err != nil {
		return nil, nil, fmt.Errorf("failed to parse Comment data: %w", err)
	}

	// replies is a Listing, or "" when there are none
	var rawData struct {
		Replies json.RawMessage `json:"replies"`
	}
	if err := json.Unmarshal(thing.Data, &rawData); err != nil || len(rawData.Replies) == 0 || string(rawData.Replies) == `""` {
		return &comment, nil, nil
	}

	var repliesThing types.Thing
	if err := json.Unmarshal(rawData.Replies, &repliesThing); err != nil {
		return &comment, nil, nil
	}
	replies, moreIDs, err := p.ExtractComments(&repliesThing)
	if err != nil {
		return &comment, nil, nil
	}
	comment.Replies = replies
	return &comment, moreIDs, nil
}

// ParseSubreddit extracts a SubredditData from a Thing of kind "t5".
func (p *Parser) ParseSubreddit(thing *types.Thing) (*types.SubredditData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindSubreddit {
		return nil, fmt.Errorf("expected t5 (Subreddit), got %s", thing.Kind)
	}

	var subreddit types.SubredditData
	if err := json.Unmarshal(thing.Data, &subreddit); err != nil {
		return nil, fmt.Errorf("failed to parse Subreddit data: %w", err)
	}
	return &subreddit, nil
}

// ParseAccount extracts an AccountData from a Thing of kind "t2".
func (p *Parser) ParseAccount(thing *types.Thing) (*types.AccountData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindAccount {
		return nil, fmt.Errorf("expected t2 (Account), got %s", thing.Kind)
	}

	var account types.AccountData
	if err := json.Unmarshal(thing.Data, &account); err != nil {
		return nil, fmt.Errorf("failed to parse Account data: %w", err)
	}
	return &account, nil
}

// ParseMessage extracts a MessageData from a Thing of kind "t4".
func (p *Parser) ParseMessage(thing *types.Thing) (*types.MessageData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindMessage {
		return nil, fmt.Errorf("expected t4 (Message), got %s", thing.Kind)
	}

	var message types.MessageData
	if err := json.Unmarshal(thing.Data, &message); err != nil {
		return nil, fmt.Errorf("failed to parse Message data: %w", err)
	}
	return &message, nil
}

// ParseMore extracts a MoreData from a Thing of kind "more".
func (p *Parser) ParseMore(thing *types.Thing) (*types.MoreData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindMore {
		return nil, fmt.Errorf("expected more, got %s", thing.Kind)
	}

	var more types.MoreData
	if err := json.Unmarshal(thing.Data, &more); err != nil {
		return nil, fmt.Errorf("failed to parse More data: %w", err)
	}
	return &more, nil
}

// ExtractPosts extracts all Post objects from a listing Thing.
func (p *Parser) ExtractPosts(listing *types.Thing) ([]*types.Post, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, err
	}
	return p.PostsFrom(listingData), nil
}

// PostsFrom parses the t3 children of a listing, skipping malformed entries.
func (p *Parser) PostsFrom(listingData *types.ListingData) []*types.Post {
	posts := make([]*types.Post, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		if child != nil && child.Kind == types.KindLink {
			post, err := p.ParseLink(child)
			if err != nil {
				continue
			}
			posts = append(posts, post)
		}
	}
	return posts
}

// ExtractComments parses a comment Listing, or a single t1, into top-level
// comments with their replies nested beneath them. The IDs of every "more"
// stub in the tree are returned for a later GetMoreComments call.
func (p *Parser) ExtractComments(thing *types.Thing) ([]*types.Comment, []string, error) {
	if thing == nil {
		return nil, nil, fmt.Errorf("thing is nil")
	}

	if thing.Kind == types.KindComment {
		comment, moreIDs, err := p.parseCommentTree(thing)
		if err != nil {
			return nil, nil, err
		}
		return []*types.Comment{comment}, append(make([]string, 0, len(moreIDs)), moreIDs...), nil
	}

	if thing.Kind != types.KindListing {
		return nil, nil, fmt.Errorf("expected Listing or t1, got %s", thing.Kind)
	}

	listingData, err := p.ParseListing(thing)
	if err != nil {
		return nil, nil, err
	}

	comments := make([]*types.Comment, 0, len(listingData.Children))
	moreIDs := make([]string, 0)
	for _, child := range listingData.Children {
		if child == nil {
			continue
		}
		switch child.Kind {
		case types.KindComment:
			comment, nested, err := p.parseCommentTree(child)
			if err != nil {
				continue
			}
			comments = append(comments, comment)
			moreIDs = append(moreIDs, nested...)
		case types.KindMore:
			more, err := p.ParseMore(child)
			if err != nil {
				continue
			}
			moreIDs = append(moreIDs, more.Children...)
		}
	}

	return comments, moreIDs, nil
}
