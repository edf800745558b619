package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ceyewan/shortlink/xerrors"
)

func TestClickEventJSONShape(t *testing.T) {
	ts := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	event := ClickEvent{
		Code:        "1a2B3c",
		Timestamp:   ts,
		UserAgent:   "Mozilla/5.0",
		IPAddress:   "203.0.113.7",
		Referrer:    "https://example.com/",
		OriginalURL: "https://example.com/some/long/path",
	}

	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, key := range []string{"code", "timestamp", "user_agent", "ip_address", "referrer", "original_url"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if decoded["code"] != "1a2B3c" {
		t.Errorf("code = %v, want 1a2B3c", decoded["code"])
	}
}

func TestClickEventRoundTrip(t *testing.T) {
	event := ClickEvent{
		Code:        "abc",
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		UserAgent:   "curl/8.0",
		OriginalURL: "https://example.com",
	}

	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded ClickEvent
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != event {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, event)
	}
}

func TestClickEventTimestampForms(t *testing.T) {
	cases := []struct {
		name string
		ts   string
		want time.Time
	}{
		{"utc with z", "2026-08-24T10:00:00Z", time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)},
		{"numeric offset", "2026-08-24T18:00:00+08:00", time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)},
		{"no zone read as utc", "2026-08-24T10:00:00", time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)},
		{"no zone with fraction", "2026-08-24T10:00:00.123456", time.Date(2026, 8, 24, 10, 0, 0, 123456000, time.UTC)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body := []byte(`{"code":"abc","timestamp":"` + c.ts + `"}`)
			var event ClickEvent
			if err := json.Unmarshal(body, &event); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !event.Timestamp.Equal(c.want) {
				t.Errorf("Timestamp = %v, want %v", event.Timestamp, c.want)
			}
		})
	}

	t.Run("garbage timestamp is rejected", func(t *testing.T) {
		var event ClickEvent
		err := json.Unmarshal([]byte(`{"code":"abc","timestamp":"yesterday"}`), &event)
		if !xerrors.Is(err, ErrInvalidTimestamp) {
			t.Errorf("Unmarshal = %v, want ErrInvalidTimestamp", err)
		}
	})

	t.Run("missing timestamp yields zero time", func(t *testing.T) {
		var event ClickEvent
		if err := json.Unmarshal([]byte(`{"code":"abc"}`), &event); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if !event.Timestamp.IsZero() {
			t.Errorf("Timestamp = %v, want zero", event.Timestamp)
		}
	})
}

func TestNormalize(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	event := ClickEvent{
		Code:      "abc",
		Timestamp: time.Date(2026, 8, 24, 18, 30, 15, 123456789, loc),
	}

	normalized := event.Normalize()

	want := time.Date(2026, 8, 24, 10, 30, 15, 0, time.UTC)
	if !normalized.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", normalized.Timestamp, want)
	}
	if normalized.Timestamp.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", normalized.Timestamp.Location())
	}

	// 原事件不受影响
	if event.Timestamp.Nanosecond() != 123456789 {
		t.Error("Normalize mutated the original event")
	}
}
