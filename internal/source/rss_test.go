package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nightfeed/internal/services"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Gaming News</title>
    <item>
      <title>Big Studio Announces Sequel</title>
      <link>https://news.example/sequel</link>
      <pubDate>Mon, 17 Aug 2026 09:30:00 +0000</pubDate>
    </item>
    <item>
      <title>Patch Notes Roundup</title>
      <link>https://news.example/patch-notes</link>
      <pubDate>Mon, 17 Aug 2026 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://news.example/untitled</link>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Tech Blog</title>
  <entry>
    <title>New Engine Benchmarks</title>
    <link rel="alternate" href="https://blog.example/benchmarks"/>
    <id>urn:uuid:1</id>
    <updated>2026-08-17T10:00:00Z</updated>
  </entry>
</feed>`

func newFeedAdapter(t *testing.T, body string, status int) *FeedAdapter {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewFeedAdapter(FeedSource{
		Name:     "example_news",
		URL:      server.URL,
		Language: "en",
		Category: "gaming",
		Priority: 3,
	}, 10, server.Client())
}

func TestFeedAdapterRSS(t *testing.T) {
	adapter := newFeedAdapter(t, rssFixture, http.StatusOK)

	records, dropped, err := Collect(context.Background(), adapter)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped untitled item, got %d", dropped)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.Source != "example_news" || first.ExternalID != "https://news.example/sequel" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	want := time.Date(2026, 8, 17, 9, 30, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("expected published_at %v, got %v", want, first.PublishedAt)
	}
}

func TestFeedAdapterAtom(t *testing.T) {
	adapter := newFeedAdapter(t, atomFixture, http.StatusOK)

	records, dropped, err := Collect(context.Background(), adapter)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ExternalID != "https://blog.example/benchmarks" {
		t.Fatalf("expected link identity, got %q", records[0].ExternalID)
	}
}

func TestFeedAdapterMaxItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	t.Cleanup(server.Close)
	adapter := NewFeedAdapter(FeedSource{Name: "example_news", URL: server.URL}, 1, server.Client())

	raw, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected cap of 1 item, got %d", len(raw))
	}
}

func TestFeedAdapterUnavailable(t *testing.T) {
	adapter := newFeedAdapter(t, "", http.StatusInternalServerError)

	_, err := adapter.Fetch(context.Background())
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable on 500, got %v", err)
	}
}

func TestFeedAdapterMalformedXML(t *testing.T) {
	adapter := newFeedAdapter(t, "{definitely not xml", http.StatusOK)

	_, err := adapter.Fetch(context.Background())
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable on malformed feed, got %v", err)
	}
}
