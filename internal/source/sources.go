package source

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// FeedSource is one declarative feed entry from the YAML sources file.
// Changes to the file take effect on the next run; the list is never
// reloaded mid-run.
type FeedSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Language string `yaml:"language"`
	Category string `yaml:"category"`
	Priority int    `yaml:"priority"`
}

type sourcesFile struct {
	Sources []FeedSource `yaml:"sources"`
}

// Label returns a human-readable name for CLI and notification output.
func (s FeedSource) Label() string {
	tag, err := language.Parse(s.Language)
	if err != nil {
		tag = language.English
	}
	title := cases.Title(tag)
	return title.String(strings.ReplaceAll(s.Name, "_", " "))
}

// LoadSources reads and validates the feed source list. A missing file is an
// error; an empty list is not.
func LoadSources(path string) ([]FeedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Sources))
	for i := range file.Sources {
		src := &file.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		src.URL = strings.TrimSpace(src.URL)
		if src.Name == "" {
			return nil, fmt.Errorf("sources file: entry %d has no name", i+1)
		}
		if src.URL == "" {
			return nil, fmt.Errorf("sources file: source %q has no url", src.Name)
		}
		if _, dup := seen[src.Name]; dup {
			return nil, fmt.Errorf("sources file: duplicate source name %q", src.Name)
		}
		seen[src.Name] = struct{}{}
		if src.Language == "" {
			src.Language = "en"
		}
		if _, err := language.Parse(src.Language); err != nil {
			return nil, fmt.Errorf("sources file: source %q has invalid language tag %q: %w", src.Name, src.Language, err)
		}
		if src.Priority == 0 {
			src.Priority = 1
		}
	}
	return file.Sources, nil
}
