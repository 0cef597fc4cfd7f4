package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func benchmarkPipeline(b *testing.B, body []byte, logger *slog.Logger) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "60")
		w.Header().Set("X-Ratelimit-Reset", "3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client, _ := NewClient(http.DefaultClient, server.URL, "bench/1.0", &RateLimitConfig{RequestsPerMinute: 1e9, Burst: 1 << 20}, logger)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, _ := client.NewRequest(ctx, http.MethodGet, "api/v1/me", nil)
		tree := ValidateStatus(client.Do(req, "bench-token"))
		_ = tree
	}
}

func BenchmarkClient_Do_WithLogging(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
	benchmarkPipeline(b, []byte(`{"name":"test","id":"123"}`), logger)
}

func BenchmarkClient_Do_WithLoggingDebug(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	benchmarkPipeline(b, bytes.Repeat([]byte(`{"kind":"Listing","data":{"children":[]}}`), 100), logger)
}

func BenchmarkClient_Do_WithoutLogging(b *testing.B) {
	benchmarkPipeline(b, []byte(`{"name":"test","id":"123"}`), nil)
}

func BenchmarkDecodeListing(b *testing.B) {
	body := []byte(`{"kind":"Listing","data":{"after":"t3_z","children":[` +
		`{"kind":"t3","data":{"id":"a","name":"t3_a","title":"one"}},` +
		`{"kind":"t3","data":{"id":"b","name":"t3_b","title":"two"}}]}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree, err := DecodeJSON(body).Unwrap()
		if err != nil {
			b.Fatal(err)
		}
		if _, err := ParseListing(tree).Unwrap(); err != nil {
			b.Fatal(err)
		}
	}
}
