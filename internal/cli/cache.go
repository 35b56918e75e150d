package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/digestrank/internal/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clean the batch score cache",
	Long: `The score cache stores validated batch scores keyed by provider, model,
profile and the papers in the batch. Re-ranking the same digest with the
same profile is answered from the cache without calling the provider.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := diskCache()
		if err != nil {
			return err
		}

		stats, err := disk.Stats()
		if err != nil {
			return fmt.Errorf("read cache: %w", err)
		}

		fmt.Printf("Entries: %d\n", stats.Entries)
		fmt.Printf("Expired: %d\n", stats.Expired)
		fmt.Printf("Size:    %.1f KiB\n", float64(stats.Bytes)/1024)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired and unreadable cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := diskCache()
		if err != nil {
			return err
		}

		removed, err := disk.Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}

		fmt.Fprintf(os.Stderr, "✓ Removed %d cache entries\n", removed)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached batch score",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := diskCache()
		if err != nil {
			return err
		}

		if err := disk.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}

		fmt.Fprintf(os.Stderr, "✓ Cleared cache\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func diskCache() (*cache.DiskCache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Dir == "" {
		return nil, fmt.Errorf("cache.dir is not set")
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Cache dir: %s\n", cfg.Cache.Dir)
	}
	return cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.TTL), nil
}
