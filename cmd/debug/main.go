// Command debug runs a saved Reddit response through one decoding pipeline
// and prints what the client would return, or the failure kind.
//
//	debug -envelope article response.json
//	curl -s ... | debug -envelope listing -
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/jamesprial/go-reddift/internal"
	pkgerrs "github.com/jamesprial/go-reddift/pkg/errors"
	"github.com/jamesprial/go-reddift/pkg/result"
)

// pipelines maps an envelope name to the stages that follow status
// validation for that endpoint.
var pipelines = map[string]func([]byte) result.Result[any]{
	"needs_captcha": func(b []byte) result.Result[any] { return widen(internal.DecodeBooleanString(b)) },
	"captcha_image": func(b []byte) result.Result[any] { return widen(internal.DecodeCAPTCHAImage(b)) },
	"captcha_iden":  decoded(internal.ParseCAPTCHAIden),
	"comment":       decoded(internal.ParsePostedComment),
	"article":       decoded(internal.SplitArticleResponse),
	"me":            decoded(internal.ParseThingT2),
	"listing":       decoded(internal.ParseListing),
	"morechildren":  decoded(internal.ParseMoreChildren),
}

func widen[T any](r result.Result[T]) result.Result[any] {
	return result.Map(r, func(v T) any { return v })
}

func decoded[T any](extract func(any) result.Result[T]) func([]byte) result.Result[any] {
	return func(body []byte) result.Result[any] {
		return widen(result.Bind(internal.DecodeJSON(body), extract))
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	envelope := flag.String("envelope", "listing", "pipeline to run: "+strings.Join(names(), ", "))
	status := flag.Int("status", 200, "HTTP status the response arrived with")
	flag.Parse()

	pipeline, ok := pipelines[*envelope]
	if !ok || flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	body, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug: %v\n", err)
		return 1
	}

	out := result.Bind(internal.ValidateStatus(internal.NewResponse(body, &http.Response{StatusCode: *status}, nil)), pipeline)
	v, err := out.Unwrap()
	if err != nil {
		kind, _ := pkgerrs.KindOf(err)
		fmt.Fprintf(os.Stderr, "failure (%s): %v\n", kind, err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Printf("%#v\n", v)
	}
	return 0
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func names() []string {
	out := make([]string, 0, len(pipelines))
	for name := range pipelines {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
