package internal

import (
	"fmt"

	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/result"
)

// Lookup walks a decoded JSON tree. Each step is a string (object key) or an
// int (array index). It reports false as soon as a step does not apply.
func Lookup(v any, path ...any) (any, bool) {
	cur := v
	for _, step := range path {
		switch key := step.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := obj[key]
			if !ok {
				return nil, false
			}
			cur = next
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			cur = arr[key]
		default:
			return nil, false
		}
	}
	return cur, true
}

// As asserts the type of a lookup result.
func As[T any](v any, ok bool) (T, bool) {
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// At looks up path in v and asserts the final value is a T. A missing step
// or a wrongly typed value fails with kind.
func At[T any](v any, kind pkgerrs.Kind, path ...any) result.Result[T] {
	typed, ok := As[T](Lookup(v, path...))
	if !ok {
		return result.Failure[T](pkgerrs.New(kind, fmt.Sprintf("no %T at %s", typed, formatPath(path))))
	}
	return result.Success(typed)
}

func formatPath(path []any) string {
	if len(path) == 0 {
		return "root"
	}
	s := ""
	for _, step := range path {
		switch key := step.(type) {
		case string:
			s += "." + key
		case int:
			s += fmt.Sprintf("[%d]", key)
		}
	}
	return s
}
