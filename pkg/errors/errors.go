// Package errors defines the error taxonomy shared by the decoding pipeline,
// the token lifecycle and the client facade.
//
// Every pipeline failure is an *Error carrying exactly one Kind. Kinds are
// chosen from the structural condition that failed (a status code outside
// 2xx, a missing envelope key, a wrong array length), never from message text.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind names one member of the closed failure taxonomy.
type Kind int

const (
	// KindHTTPStatus means the transport returned a status outside [200, 300).
	KindHTTPStatus Kind = iota + 1
	// KindParseJSON means the body was not well-formed JSON or held no value.
	KindParseJSON
	// KindParseThing means the JSON did not match the expected thing/listing shape.
	KindParseThing
	// KindParseThingT2 means the JSON did not match an account (t2) payload.
	KindParseThingT2
	// KindParseListingArticles means an article response was not [post, comments].
	KindParseListingArticles
	// KindGetCAPTCHAIden means the new_captcha envelope had no iden.
	KindGetCAPTCHAIden
	// KindGetCAPTCHAImage means the CAPTCHA bytes were not a decodable image.
	KindGetCAPTCHAImage
	// KindCheckNeedsCAPTCHA means needs_captcha returned neither "true" nor "false".
	KindCheckNeedsCAPTCHA
	// KindPostComment means the comment envelope did not hold exactly one comment.
	KindPostComment
	// KindParseMoreChildren means the morechildren envelope was malformed or reported errors.
	KindParseMoreChildren
	// KindOAuthRedirect means the authorization redirect was unusable.
	KindOAuthRedirect
	// KindTokenExchange means the authorization code could not be exchanged.
	KindTokenExchange
	// KindTokenRefresh means the refresh token could not be exchanged.
	KindTokenRefresh
	// KindTokenStore means the credential store could not be read or written.
	KindTokenStore
	// KindNotAuthenticated means no credential is held.
	KindNotAuthenticated
)

var kindNames = map[Kind]string{
	KindHTTPStatus:           "http status",
	KindParseJSON:            "parse json",
	KindParseThing:           "parse thing",
	KindParseThingT2:         "parse thing t2",
	KindParseListingArticles: "parse listing articles",
	KindGetCAPTCHAIden:       "get captcha iden",
	KindGetCAPTCHAImage:      "get captcha image",
	KindCheckNeedsCAPTCHA:    "check needs captcha",
	KindPostComment:          "post comment",
	KindParseMoreChildren:    "parse more children",
	KindOAuthRedirect:        "oauth redirect",
	KindTokenExchange:        "token exchange",
	KindTokenRefresh:         "token refresh",
	KindTokenStore:           "token store",
	KindNotAuthenticated:     "not authenticated",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is comparisons. An *Error matches the sentinel of its Kind.
var (
	ErrHTTPStatus           = &Error{Kind: KindHTTPStatus}
	ErrParseJSON            = &Error{Kind: KindParseJSON}
	ErrParseThing           = &Error{Kind: KindParseThing}
	ErrParseThingT2         = &Error{Kind: KindParseThingT2}
	ErrParseListingArticles = &Error{Kind: KindParseListingArticles}
	ErrGetCAPTCHAIden       = &Error{Kind: KindGetCAPTCHAIden}
	ErrGetCAPTCHAImage      = &Error{Kind: KindGetCAPTCHAImage}
	ErrCheckNeedsCAPTCHA    = &Error{Kind: KindCheckNeedsCAPTCHA}
	ErrPostComment          = &Error{Kind: KindPostComment}
	ErrParseMoreChildren    = &Error{Kind: KindParseMoreChildren}
	ErrOAuthRedirect        = &Error{Kind: KindOAuthRedirect}
	ErrTokenExchange        = &Error{Kind: KindTokenExchange}
	ErrTokenRefresh         = &Error{Kind: KindTokenRefresh}
	ErrTokenStore           = &Error{Kind: KindTokenStore}
	ErrNotAuthenticated     = &Error{Kind: KindNotAuthenticated}
)

// Error is the single failure value produced by every pipeline stage.
type Error struct {
	// Kind is the taxonomy member.
	Kind Kind
	// StatusCode is the HTTP status for KindHTTPStatus, and for token
	// endpoint failures when the server answered.
	StatusCode int
	// Message is an optional human-readable detail.
	Message string
	// Err is the optional nested cause, e.g. a json.SyntaxError.
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(" error")

	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status code %d", e.StatusCode)
	}

	if e.Message != "" {
		if e.StatusCode != 0 {
			sb.WriteString(", ")
		} else {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Message)
	}

	if e.Err != nil {
		fmt.Fprintf(&sb, " (%v)", e.Err)
	}

	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package sentinels work with
// errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an *Error of the given kind with an optional message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an *Error of the given kind with err as the nested cause.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// HTTPStatus returns the KindHTTPStatus failure for code. cause is the
// transport error, if the request never produced a response.
func HTTPStatus(code int, cause error) *Error {
	return &Error{Kind: KindHTTPStatus, StatusCode: code, Err: cause}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err's chain holds an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// StatusCode recovers the HTTP status carried by a KindHTTPStatus failure.
func StatusCode(err error) (int, bool) {
	var e *Error
	if stderrors.As(err, &e) && e.Kind == KindHTTPStatus {
		return e.StatusCode, true
	}
	return 0, false
}

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError describes a token endpoint response that was not a token.
type AuthError struct {
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Code is the OAuth2 error code, e.g. "invalid_grant"
	Code string
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	parts := []string{}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}
	if e.Code != "" {
		parts = append(parts, "code "+e.Code)
	}
	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 0 {
		return "auth error"
	}
	return "auth error: " + strings.Join(parts, ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StateError indicates an operation was attempted in the wrong lifecycle state.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}
