package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"nightfeed/internal/config"
	"nightfeed/internal/services"
)

var appLinkPattern = regexp.MustCompile(`/app/(\d+)`)

// SteamTrending scrapes the storefront new-releases page for trending titles.
// The page carries no numeric ranking, so trending records ship without rank
// or score and surface purely through new-entry detection.
type SteamTrending struct {
	client   *http.Client
	baseURL  string
	maxItems int
	priority int
	now      func() time.Time
}

// NewSteamTrending builds the trending adapter from configuration.
func NewSteamTrending(cfg config.Trending, client *http.Client) *SteamTrending {
	if client == nil {
		client = http.DefaultClient
	}
	return &SteamTrending{
		client:   client,
		baseURL:  cfg.BaseURL,
		maxItems: cfg.MaxItems,
		priority: cfg.Priority,
		now:      time.Now,
	}
}

// Name implements Adapter.
func (s *SteamTrending) Name() string { return "steam_trending" }

// Priority implements Adapter.
func (s *SteamTrending) Priority() int { return s.priority }

// Fetch scrapes app links from the new-releases page. Duplicate app IDs are
// skipped at the raw layer since the same title appears in several page
// sections.
func (s *SteamTrending) Fetch(ctx context.Context) ([]RawItem, error) {
	endpoint := s.baseURL + "/explore/new/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch", "build trending request", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch", "steam new releases request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch",
			fmt.Sprintf("steam new releases returned status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch", "parse new releases page", err)
	}

	fetched := s.now().UTC()
	seen := make(map[string]struct{})
	var raw []RawItem

	doc.Find(`a[href*="/app/"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if s.maxItems > 0 && len(raw) >= s.maxItems {
			return false
		}
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		match := appLinkPattern.FindStringSubmatch(href)
		if match == nil {
			return true
		}
		appID := match[1]
		if _, dup := seen[appID]; dup {
			return true
		}
		title := sel.Find(".tab_item_name").First().Text()
		if title == "" {
			title = sel.Text()
		}
		title = cleanTitle(title)
		if len(title) < 2 {
			return true
		}
		seen[appID] = struct{}{}
		raw = append(raw, RawItem{
			ID:        appID,
			Title:     title,
			URL:       fmt.Sprintf("%s/app/%s/", s.baseURL, appID),
			Published: fetched,
		})
		return true
	})

	return raw, nil
}

// Normalize implements Adapter.
func (s *SteamTrending) Normalize(item RawItem) (Record, bool) {
	title := cleanTitle(item.Title)
	if item.ID == "" || len(title) < 2 {
		return Record{}, false
	}
	return Record{
		Source:      s.Name(),
		ExternalID:  item.ID,
		Title:       title,
		URL:         item.URL,
		PublishedAt: item.Published,
		FetchedAt:   s.now().UTC(),
	}, true
}
