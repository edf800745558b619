package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("empty namespace returns error", func(t *testing.T) {
		_, err := New("")
		if err == nil {
			t.Error("Expected error for empty namespace")
		}
	})

	t.Run("valid namespace", func(t *testing.T) {
		meter, err := New("test")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if meter == nil {
			t.Fatal("Expected meter but got nil")
		}
	})
}

func TestCounter(t *testing.T) {
	meter, err := New("test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("inc and expose", func(t *testing.T) {
		counter, err := meter.Counter("redirects_total", "Total redirects", "source")
		if err != nil {
			t.Fatalf("Counter failed: %v", err)
		}

		ctx := context.Background()
		counter.Inc(ctx, L("source", "cache"))
		counter.Inc(ctx, L("source", "cache"))
		counter.Add(ctx, 3, L("source", "db"))

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/metrics", nil)
		meter.Handler().ServeHTTP(rec, req)

		body, _ := io.ReadAll(rec.Body)
		text := string(body)
		if !strings.Contains(text, `test_redirects_total{source="cache"} 2`) {
			t.Errorf("Expected cache counter in output:\n%s", text)
		}
		if !strings.Contains(text, `test_redirects_total{source="db"} 3`) {
			t.Errorf("Expected db counter in output:\n%s", text)
		}
	})

	t.Run("duplicate registration reuses collector", func(t *testing.T) {
		c1, err := meter.Counter("dup_total", "dup", "k")
		if err != nil {
			t.Fatalf("Counter failed: %v", err)
		}
		c2, err := meter.Counter("dup_total", "dup", "k")
		if err != nil {
			t.Fatalf("Counter failed on duplicate: %v", err)
		}
		if c1 == nil || c2 == nil {
			t.Fatal("Expected non-nil counters")
		}
	})
}

func TestDiscard(t *testing.T) {
	meter := Discard()
	counter, err := meter.Counter("ignored", "ignored")
	if err != nil {
		t.Fatalf("Counter failed: %v", err)
	}
	// 不应 panic
	counter.Inc(context.Background())
	counter.Add(context.Background(), 5)
}
