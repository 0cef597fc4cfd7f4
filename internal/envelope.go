package internal

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"unicode/utf8"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/result"
	"github.com/jamesprial/go-reddift/pkg/types"
)

// Envelope extractors narrow a decoded response to the part an endpoint
// needs. Each one walks a fixed path and fails with its own Kind when the
// shape is absent; adding an endpoint means adding one function here.

var parser = NewParser()

// DecodeBooleanString interprets the bare literal returned by
// api/needs_captcha. Only the exact texts "true" and "false" are accepted.
func DecodeBooleanString(body []byte) result.Result[bool] {
	if utf8.Valid(body) {
		switch string(body) {
		case "true":
			return result.Success(true)
		case "false":
			return result.Success(false)
		}
	}
	return result.Failure[bool](pkgerrs.New(pkgerrs.KindCheckNeedsCAPTCHA, fmt.Sprintf("unexpected needs_captcha body %q", truncate(body, 32))))
}

// DecodeCAPTCHAImage decodes the CAPTCHA challenge bytes.
func DecodeCAPTCHAImage(body []byte) result.Result[*types.CAPTCHAImage] {
	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return result.Failure[*types.CAPTCHAImage](pkgerrs.Wrap(pkgerrs.KindGetCAPTCHAImage, err))
	}
	return result.Success(&types.CAPTCHAImage{Image: img, Format: format})
}

// ParseCAPTCHAIden extracts the iden from
//
//	{"json": {"data": {"iden": "<code>"}, "errors": []}}
func ParseCAPTCHAIden(tree any) result.Result[string] {
	return At[string](tree, pkgerrs.KindGetCAPTCHAIden, "json", "data", "iden")
}

// ParsePostedComment extracts the comment created by api/comment from
//
//	{"json": {"errors": [], "data": {"things": [<t1 thing>]}}}
//
// things must hold exactly one well-formed comment.
func ParsePostedComment(tree any) result.Result[*types.Comment] {
	things := At[[]any](tree, pkgerrs.KindPostComment, "json", "data", "things")
	return result.Bind(things, func(things []any) result.Result[*types.Comment] {
		if len(things) != 1 {
			return result.Failure[*types.Comment](pkgerrs.New(pkgerrs.KindPostComment, fmt.Sprintf("expected exactly one thing, got %d", len(things))))
		}
		comment, ok := parser.ConstructComment(things[0])
		return result.FromOptional(comment, ok, pkgerrs.New(pkgerrs.KindPostComment, "posted thing is not a comment"))
	})
}

// Article is an article response split into its two listings.
type Article struct {
	Post     *types.Thing
	Comments *types.Thing
}

// SplitArticleResponse checks that an article response is the two-element
// array [post listing, comment listing] and returns both elements. The
// second element must be listing-shaped; the first is returned as found.
func SplitArticleResponse(tree any) result.Result[Article] {
	fail := result.Failure[Article](pkgerrs.New(pkgerrs.KindParseListingArticles, "expected [post listing, comment listing]"))

	arr, ok := tree.([]any)
	if !ok || len(arr) != 2 {
		return fail
	}

	comments, ok := parser.ThingFrom(arr[1])
	if !ok || !comments.IsListing() {
		return fail
	}

	post, _ := parser.ThingFrom(arr[0])
	return result.Success(Article{Post: post, Comments: comments})
}

// FilterArticleResponse returns the comment listing of an article response.
func FilterArticleResponse(tree any) result.Result[*types.Thing] {
	return result.Map(SplitArticleResponse(tree), func(a Article) *types.Thing {
		return a.Comments
	})
}

// ParseThingT2 builds the account returned by api/v1/me.
func ParseThingT2(tree any) result.Result[*types.AccountData] {
	account, ok := parser.ConstructAccount(tree)
	return result.FromOptional(account, ok, pkgerrs.New(pkgerrs.KindParseThingT2, "response is not an account"))
}

// ParseListing builds the typed object for a Thing or Listing response.
func ParseListing(tree any) result.Result[any] {
	obj, ok := parser.ConstructThing(tree)
	return result.FromOptional(obj, ok, pkgerrs.New(pkgerrs.KindParseThing, "response is not a thing"))
}

// ParseMoreChildren extracts the comments returned by api/morechildren from
//
//	{"json": {"errors": [], "data": {"things": [...]}}}
//
// Entries that are not t1 comments are skipped. A non-empty errors array
// fails with its first entry as the message.
func ParseMoreChildren(tree any) result.Result[[]*types.Comment] {
	if apiErrors, ok := As[[]any](Lookup(tree, "json", "errors")); ok && len(apiErrors) > 0 {
		return result.Failure[[]*types.Comment](pkgerrs.New(pkgerrs.KindParseMoreChildren, fmt.Sprintf("API error: %v", apiErrors[0])))
	}

	things := At[[]any](tree, pkgerrs.KindParseMoreChildren, "json", "data", "things")
	return result.Map(things, func(things []any) []*types.Comment {
		comments := make([]*types.Comment, 0, len(things))
		for _, thing := range things {
			if comment, ok := parser.ConstructComment(thing); ok {
				comments = append(comments, comment)
			}
		}
		return comments
	})
}

// ListingOf narrows a ParseListing result to a *types.ListingData.
func ListingOf(v any) result.Result[*types.ListingData] {
	listing, ok := v.(*types.ListingData)
	return result.FromOptional(listing, ok, pkgerrs.New(pkgerrs.KindParseThing, fmt.Sprintf("expected Listing, got %T", v)))
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
