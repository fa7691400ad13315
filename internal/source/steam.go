package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nightfeed/internal/config"
	"nightfeed/internal/services"
)

// SteamTopSellers fetches the Steam storefront top-sellers ranking. Rank is
// the item's 1-based position in the featured-categories response.
type SteamTopSellers struct {
	client   *http.Client
	baseURL  string
	maxItems int
	priority int
	now      func() time.Time
}

// NewSteamTopSellers builds the ranking adapter from configuration.
func NewSteamTopSellers(cfg config.Steam, client *http.Client) *SteamTopSellers {
	if client == nil {
		client = http.DefaultClient
	}
	return &SteamTopSellers{
		client:   client,
		baseURL:  cfg.BaseURL,
		maxItems: cfg.MaxItems,
		priority: cfg.Priority,
		now:      time.Now,
	}
}

// Name implements Adapter.
func (s *SteamTopSellers) Name() string { return "steam_top_sellers" }

// Priority implements Adapter.
func (s *SteamTopSellers) Priority() int { return s.priority }

type featuredCategories struct {
	TopSellers struct {
		Items []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	} `json:"top_sellers"`
}

// Fetch retrieves the current top-sellers list. Zero items is a valid
// outcome; transport and decode failures wrap ErrSourceUnavailable.
func (s *SteamTopSellers) Fetch(ctx context.Context) ([]RawItem, error) {
	endpoint := s.baseURL + "/api/featuredcategories?cc=us&l=en"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch", "build steam request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch", "steam featured categories request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch",
			fmt.Sprintf("steam featured categories returned status %d", resp.StatusCode), nil)
	}

	var payload featuredCategories
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "collecting", "fetch", "decode steam response", err)
	}

	fetched := s.now().UTC()
	items := payload.TopSellers.Items
	if s.maxItems > 0 && len(items) > s.maxItems {
		items = items[:s.maxItems]
	}

	raw := make([]RawItem, 0, len(items))
	for i, item := range items {
		raw = append(raw, RawItem{
			ID:        strconv.FormatInt(item.ID, 10),
			Title:     item.Name,
			URL:       fmt.Sprintf("%s/app/%d/", s.baseURL, item.ID),
			Rank:      intPtr(i + 1),
			Published: fetched,
		})
	}
	return raw, nil
}

// Normalize implements Adapter. Items without an app ID or name are dropped.
func (s *SteamTopSellers) Normalize(item RawItem) (Record, bool) {
	title := cleanTitle(item.Title)
	if item.ID == "" || item.ID == "0" || title == "" {
		return Record{}, false
	}
	return Record{
		Source:      s.Name(),
		ExternalID:  item.ID,
		Title:       title,
		URL:         item.URL,
		Rank:        item.Rank,
		PublishedAt: item.Published,
		FetchedAt:   s.now().UTC(),
	}, true
}
