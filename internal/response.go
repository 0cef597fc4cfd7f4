package internal

import (
	"fmt"
	"io"
	"net/http"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/result"
)

// StatusMissingResponse stands in for the status code when the transport
// produced no HTTP response at all.
const StatusMissingResponse = http.StatusInternalServerError

// Response is the uniform record every decoder consumes.
// Body is never nil and StatusCode is always set.
type Response struct {
	Body       []byte
	StatusCode int
	// Err is the transport error, if the request failed before a response.
	Err error
}

// NewResponse normalizes a transport outcome. A nil body becomes empty and a
// missing response becomes StatusMissingResponse; judgment is left to
// ValidateStatus.
func NewResponse(body []byte, resp *http.Response, err error) Response {
	if body == nil {
		body = []byte{}
	}

	code := StatusMissingResponse
	if resp != nil {
		code = resp.StatusCode
	}

	return Response{Body: body, StatusCode: code, Err: err}
}

// ReadResponse drains and closes resp.Body and normalizes the result.
func ReadResponse(resp *http.Response, err error) Response {
	if err != nil || resp == nil {
		return NewResponse(nil, nil, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return NewResponse(nil, resp, fmt.Errorf("failed to read response body: %w", readErr))
	}
	return NewResponse(body, resp, nil)
}

// IsSuccessStatus reports whether code is in [200, 300).
func IsSuccessStatus(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// ValidateStatus passes the body on for 2xx responses and fails with
// KindHTTPStatus otherwise. The transport error, if any, becomes the cause.
// A 2xx whose body could not be read is not a success: it fails as
// StatusMissingResponse so a truncated body never reaches a decoder.
func ValidateStatus(r Response) result.Result[[]byte] {
	code := r.StatusCode
	if r.Err != nil && IsSuccessStatus(code) {
		code = StatusMissingResponse
	}
	if r.Err != nil || !IsSuccessStatus(code) {
		return result.Failure[[]byte](pkgerrs.HTTPStatus(code, r.Err))
	}
	return result.Success(r.Body)
}
