package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/config"
	"github.com/issueradar/issueradar/internal/cache"
)

// NewCmdCache creates the cache command with subcommands.
func NewCmdCache() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the issue page cache",
	}

	cmd.AddCommand(newCmdCacheClear())
	cmd.AddCommand(newCmdCacheStats())

	return cmd
}

// newCmdCacheClear creates the cache clear subcommand.
func newCmdCacheClear() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear cached issue pages",
		Long: `Remove every cached issue page. Digests waiting for 'issueradar digest flush'
are kept.`,
		RunE: runCacheClear,
	}
}

// newCmdCacheStats creates the cache stats subcommand.
func newCmdCacheStats() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE:  runCacheStats,
	}
}

func openCache() (*cache.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c, err := cache.NewCache(cfg.GetFetchSettings().CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to access cache: %w", err)
	}
	return c, nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}

	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}

	stats, err := c.DetailedStats()
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Cache statistics (%s):\n", stats.Dir)
	fmt.Fprintf(w, "  Issue pages (TTL: %s):\n", stats.TTL)
	fmt.Fprintf(w, "    Total: %d\n", stats.PageTotal)
	fmt.Fprintf(w, "    Valid: %d\n", stats.PageValid)
	fmt.Fprintf(w, "    Expired: %d\n", stats.PageTotal-stats.PageValid)
	fmt.Fprintf(w, "  Pending digests: %d\n", stats.PendingTotal)
	if stats.PendingTotal > 0 {
		fmt.Fprintln(w, "    Run 'issueradar digest flush' to store them.")
	}
	return nil
}
