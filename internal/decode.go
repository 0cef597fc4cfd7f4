package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/result"
)

// DecodeJSON parses body into a generic tree of map[string]any, []any,
// string, float64, bool and nil.
//
// A syntax error fails with KindParseJSON and the parser error as cause.
// Input that holds no value (empty, whitespace, or a bare null) fails with
// KindParseJSON and no cause.
func DecodeJSON(body []byte) result.Result[any] {
	dec := json.NewDecoder(bytes.NewReader(body))

	var tree any
	if err := dec.Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			return result.Failure[any](pkgerrs.New(pkgerrs.KindParseJSON, "response body holds no JSON value"))
		}
		return result.Failure[any](pkgerrs.Wrap(pkgerrs.KindParseJSON, err))
	}

	// Anything after the first value is malformed input.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return result.Failure[any](pkgerrs.Wrap(pkgerrs.KindParseJSON, err))
	}

	if tree == nil {
		return result.Failure[any](pkgerrs.New(pkgerrs.KindParseJSON, "response body holds no JSON value"))
	}
	return result.Success(tree)
}
