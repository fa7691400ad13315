package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSourcesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - name: example_news
    url: https://news.example/rss
    language: en
    category: gaming
    priority: 5
  - name: polski_blog
    url: https://blog.example/feed
    language: pl
`)

	sources, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Priority != 5 || sources[0].Category != "gaming" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
	if sources[1].Priority != 1 {
		t.Fatalf("expected default priority 1, got %d", sources[1].Priority)
	}
	if sources[1].Language != "pl" {
		t.Fatalf("expected language preserved, got %q", sources[1].Language)
	}
}

func TestLoadSourcesRejectsInvalidEntries(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "sources:\n  - url: https://a.example/rss\n",
			wantErr: "has no name",
		},
		{
			name:    "missing url",
			content: "sources:\n  - name: a\n",
			wantErr: "has no url",
		},
		{
			name:    "duplicate name",
			content: "sources:\n  - name: a\n    url: https://a.example\n  - name: a\n    url: https://b.example\n",
			wantErr: "duplicate source name",
		},
		{
			name:    "bad language tag",
			content: "sources:\n  - name: a\n    url: https://a.example\n    language: \"not a tag\"\n",
			wantErr: "invalid language tag",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSourcesFile(t, tc.content)
			_, err := LoadSources(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	if _, err := LoadSources(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing sources file")
	}
}

func TestFeedSourceLabel(t *testing.T) {
	src := FeedSource{Name: "example_gaming_news", Language: "en"}
	if got := src.Label(); got != "Example Gaming News" {
		t.Fatalf("unexpected label %q", got)
	}
}
