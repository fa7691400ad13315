package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"nightfeed/internal/config"
	"nightfeed/internal/services"
)

const featuredFixture = `{
  "top_sellers": {
    "items": [
      {"id": 570, "name": "Dota 2"},
      {"id": 730, "name": "Counter-Strike 2"},
      {"id": 570, "name": "Dota 2"},
      {"id": 0, "name": "Broken Entry"}
    ]
  }
}`

func newSteamAdapter(t *testing.T, handler http.HandlerFunc, maxItems int) *SteamTopSellers {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSteamTopSellers(config.Steam{
		BaseURL:  server.URL,
		MaxItems: maxItems,
		Priority: 10,
	}, server.Client())
}

func TestSteamTopSellersCollect(t *testing.T) {
	adapter := newSteamAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/featuredcategories" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(featuredFixture))
	}, 30)

	records, dropped, err := Collect(context.Background(), adapter)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped item (zero app id), got %d", dropped)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 deduplicated records, got %d", len(records))
	}
	first := records[0]
	if first.Source != "steam_top_sellers" || first.ExternalID != "570" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.Rank == nil || *first.Rank != 1 {
		t.Fatalf("expected rank 1 for first item, got %v", first.Rank)
	}
	if second := records[1]; second.Rank == nil || *second.Rank != 2 {
		t.Fatalf("expected rank 2 for second item, got %v", second.Rank)
	}
}

func TestSteamTopSellersMaxItems(t *testing.T) {
	adapter := newSteamAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(featuredFixture))
	}, 1)

	raw, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected max_items cap of 1, got %d items", len(raw))
	}
}

func TestSteamTopSellersUpstreamFailure(t *testing.T) {
	adapter := newSteamAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 30)

	_, err := adapter.Fetch(context.Background())
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable on 502, got %v", err)
	}
}

func TestSteamTopSellersMalformedBody(t *testing.T) {
	adapter := newSteamAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}, 30)

	_, err := adapter.Fetch(context.Background())
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable on malformed body, got %v", err)
	}
}
