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

const newReleasesFixture = `<html><body>
<a href="https://store.example/app/123456/Great_Game/" class="tab_item">
  <div class="tab_item_name">Great Game</div>
</a>
<a href="https://store.example/app/654321/Other_Game/" class="tab_item">
  <div class="tab_item_name">Other Game</div>
</a>
<a href="https://store.example/app/123456/Great_Game/" class="tab_item">
  <div class="tab_item_name">Great Game</div>
</a>
<a href="https://store.example/app/999/x/" class="tab_item">
  <div class="tab_item_name">x</div>
</a>
<a href="https://store.example/news/">Not an app link</a>
</body></html>`

func newTrendingAdapter(t *testing.T, handler http.HandlerFunc, maxItems int) *SteamTrending {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSteamTrending(config.Trending{
		BaseURL:  server.URL,
		MaxItems: maxItems,
		Priority: 5,
	}, server.Client())
}

func TestSteamTrendingFetch(t *testing.T) {
	adapter := newTrendingAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/explore/new/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(newReleasesFixture))
	}, 20)

	raw, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 items after dedup and short-name filtering, got %d", len(raw))
	}
	if raw[0].ID != "123456" || raw[0].Title != "Great Game" {
		t.Fatalf("unexpected first item: %+v", raw[0])
	}
	if raw[1].ID != "654321" {
		t.Fatalf("unexpected second item: %+v", raw[1])
	}
}

func TestSteamTrendingMaxItems(t *testing.T) {
	adapter := newTrendingAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(newReleasesFixture))
	}, 1)

	raw, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 item under cap, got %d", len(raw))
	}
}

func TestSteamTrendingUpstreamFailure(t *testing.T) {
	adapter := newTrendingAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 20)

	_, err := adapter.Fetch(context.Background())
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable on 503, got %v", err)
	}
}

func TestSteamTrendingNormalizeHasNoRank(t *testing.T) {
	adapter := NewSteamTrending(config.Trending{BaseURL: "https://store.example"}, nil)
	record, ok := adapter.Normalize(RawItem{ID: "42", Title: "Some Game", URL: "https://store.example/app/42/"})
	if !ok {
		t.Fatal("expected normalization to succeed")
	}
	if record.Rank != nil || record.Score != nil {
		t.Fatalf("trending records must carry no rank or score: %+v", record)
	}
	if record.Source != "steam_trending" {
		t.Fatalf("unexpected source %q", record.Source)
	}
}
