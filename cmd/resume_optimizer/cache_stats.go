package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/observability"
)

var cacheServer string

var cacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "Show cache hit/miss counters",
	Long: `Show cache counters. With --server the counters come from a running
server's /cache/stats; otherwise the configured backend is opened locally and
only its identity is meaningful, since counters start at zero.`,
	RunE: runCacheStats,
}

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheServer, "server", "", "Base URL of a running server (e.g. http://localhost:8080)")
	rootCmd.AddCommand(cacheStatsCmd)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var stats cache.Stats
	if cacheServer != "" {
		if stats, err = remoteCacheStats(ctx, cacheServer); err != nil {
			return err
		}
	} else {
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		backend, err := cache.Open(ctx, cfg.CacheOptions(), logger)
		if err != nil {
			return err
		}
		c := cache.New(backend, logger, nil)
		defer c.Close() //nolint:errcheck
		stats = c.Stats()
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintCacheStats(stats)
	return nil
}

func remoteCacheStats(ctx context.Context, base string) (cache.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/cache/stats", nil)
	if err != nil {
		return cache.Stats{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return cache.Stats{}, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cache.Stats{}, fmt.Errorf("server returned %s", resp.Status)
	}
	var stats cache.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return cache.Stats{}, fmt.Errorf("invalid stats response: %w", err)
	}
	return stats, nil
}
