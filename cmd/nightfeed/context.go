package main

import (
	"errors"
	"io/fs"

	"nightfeed/internal/config"
	"nightfeed/internal/source"
)

type commandContext struct {
	configFlag *string

	cfg       *config.Config
	cfgPath   string
	cfgExists bool
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, exists, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = resolvedPath
	c.cfgExists = exists
	return cfg, nil
}

func buildAdapters(cfg *config.Config) ([]source.Adapter, error) {
	var adapters []source.Adapter
	if cfg.Steam.Enabled {
		adapters = append(adapters, source.NewSteamTopSellers(cfg.Steam, nil))
	}
	if cfg.Trending.Enabled {
		adapters = append(adapters, source.NewSteamTrending(cfg.Trending, nil))
	}
	if cfg.Feeds.Enabled {
		feeds, err := source.LoadSources(cfg.Paths.SourcesFile)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return adapters, nil
			}
			return nil, err
		}
		for _, feed := range feeds {
			adapters = append(adapters, source.NewFeedAdapter(feed, cfg.Feeds.MaxItemsPerSource, nil))
		}
	}
	return adapters, nil
}
