package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"nightfeed/internal/services"
)

// FeedAdapter fetches one RSS or Atom feed declared in the sources file.
type FeedAdapter struct {
	client   *http.Client
	source   FeedSource
	maxItems int
	now      func() time.Time
}

// NewFeedAdapter builds an adapter for a single declared feed.
func NewFeedAdapter(src FeedSource, maxItems int, client *http.Client) *FeedAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &FeedAdapter{
		client:   client,
		source:   src,
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Name implements Adapter.
func (f *FeedAdapter) Name() string { return f.source.Name }

// Priority implements Adapter.
func (f *FeedAdapter) Priority() int { return f.source.Priority }

type feedDocument struct {
	XMLName xml.Name
	Channel *feedChannel `xml:"channel"`
	Entries []atomEntry  `xml:"entry"`
}

type feedChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	Links   []atomLink `xml:"link"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// Fetch downloads and parses the feed. Both RSS 2.0 and Atom documents are
// accepted; the maximum item count is applied after parsing.
func (f *FeedAdapter) Fetch(ctx context.Context) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.source.URL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch",
			fmt.Sprintf("build feed request for %s", f.source.Name), err)
	}
	req.Header.Set("User-Agent", "nightfeed/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch",
			fmt.Sprintf("feed request for %s", f.source.Name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch",
			fmt.Sprintf("feed %s returned status %d", f.source.Name, resp.StatusCode), nil)
	}

	var doc feedDocument
	decoder := xml.NewDecoder(resp.Body)
	decoder.Strict = false
	if err := decoder.Decode(&doc); err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch",
			fmt.Sprintf("parse feed %s", f.source.Name), err)
	}

	raw := f.rawItems(doc)
	if f.maxItems > 0 && len(raw) > f.maxItems {
		raw = raw[:f.maxItems]
	}
	return raw, nil
}

func (f *FeedAdapter) rawItems(doc feedDocument) []RawItem {
	if doc.Channel != nil {
		raw := make([]RawItem, 0, len(doc.Channel.Items))
		for _, item := range doc.Channel.Items {
			id := item.Link
			if id == "" {
				id = item.GUID
			}
			raw = append(raw, RawItem{
				ID:        id,
				Title:     item.Title,
				URL:       item.Link,
				Published: parseFeedTime(item.PubDate),
			})
		}
		return raw
	}

	raw := make([]RawItem, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		link := atomEntryLink(entry.Links)
		id := link
		if id == "" {
			id = entry.ID
		}
		raw = append(raw, RawItem{
			ID:        id,
			Title:     entry.Title,
			URL:       link,
			Published: parseFeedTime(entry.Updated),
		})
	}
	return raw
}

func atomEntryLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(value string) time.Time {
	for _, layout := range feedTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// Normalize implements Adapter. Entries missing a link identity or title are
// dropped; entries without a parseable timestamp keep a zero PublishedAt.
func (f *FeedAdapter) Normalize(item RawItem) (Record, bool) {
	title := cleanTitle(item.Title)
	if item.ID == "" || title == "" {
		return Record{}, false
	}
	fetched := f.now().UTC()
	published := item.Published
	if published.IsZero() {
		published = fetched
	}
	return Record{
		Source:      f.source.Name,
		ExternalID:  item.ID,
		Title:       title,
		URL:         item.URL,
		PublishedAt: published,
		FetchedAt:   fetched,
	}, true
}
