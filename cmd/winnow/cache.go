package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/winnow/internal/cache"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the token cache",
		Description: `The token cache stores parsed token streams keyed by language and content
digest. Enable it with [cache] enabled = true in the config file.`,
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache size and entry ages",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cache entry",
				Action: runCacheClear,
			},
		},
	}
}

// openCache opens the configured cache even when it is disabled for runs.
func openCache(c *cli.Context) (*cache.Cache, error) {
	st, err := loadState(c)
	if err != nil {
		return nil, err
	}
	return cache.New(st.config.Cache.Dir, st.config.Cache.TTL, true)
}

func runCacheStats(c *cli.Context) error {
	ch, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := ch.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Directory: %s\n", stats.Dir)
	fmt.Fprintf(w, "Entries:   %d\n", stats.Entries)
	fmt.Fprintf(w, "Size:      %d bytes\n", stats.TotalSize)
	if stats.Entries > 0 {
		fmt.Fprintf(w, "Oldest:    %s\n", stats.OldestAge.Round(time.Second))
		fmt.Fprintf(w, "Newest:    %s\n", stats.NewestAge.Round(time.Second))
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	ch, err := openCache(c)
	if err != nil {
		return err
	}
	if err := ch.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.Green("Cleared %s", ch.Dir())
	return nil
}
