package workflow

import (
	"fmt"
	"strings"

	"alchemist/internal/config"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

// Health reports which pipeline stages can do work under cfg. A nil stage is
// unhealthy; optional enhancements that cfg switches off are Disabled.
func (s Stages) Health(cfg *config.Config) []stage.Health {
	out := []stage.Health{
		present("discovery", s.Discoverer != nil),
		present("scrape", s.Scraper != nil),
		present("parse", s.Parser != nil),
		present("generation", s.Generator != nil),
		optional("images", s.Generator != nil, cfg.Images.Enabled),
		optional("video", s.Generator != nil, cfg.Video.Enabled),
	}

	monetize := present("monetize", s.Injector != nil)
	if monetize.Ready {
		var off []string
		if strings.TrimSpace(cfg.Monetization.AdClientID) == "" {
			off = append(off, "ads")
		}
		if strings.TrimSpace(cfg.Monetization.AffiliateTag) == "" {
			off = append(off, "affiliate links")
		}
		if len(off) > 0 {
			monetize.Detail = strings.Join(off, " and ") + " off"
		}
	}
	out = append(out, monetize, present("seo", s.Optimizer != nil))

	for _, tag := range cfg.Publishing.Platforms {
		name := "publish " + strings.ToLower(tag)
		platform, ok := store.ParsePlatform(tag)
		switch {
		case s.Publisher == nil:
			out = append(out, stage.Unhealthy(name, "publisher not configured"))
		case !ok || !s.Publisher.HasTarget(platform):
			out = append(out, stage.Unhealthy(name, fmt.Sprintf("no client for %s", tag)))
		default:
			out = append(out, stage.Healthy(name))
		}
	}

	out = append(out,
		optional("metrics", s.Collector != nil, strings.TrimSpace(cfg.Metrics.SourceURL) != ""),
		present("analysis", s.Analyzer != nil),
	)
	return out
}

func present(name string, ok bool) stage.Health {
	if ok {
		return stage.Healthy(name)
	}
	return stage.Unhealthy(name, "not configured")
}

func optional(name string, ok, enabled bool) stage.Health {
	if !enabled {
		return stage.Disabled(name)
	}
	return present(name, ok)
}
