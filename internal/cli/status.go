package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/wikiscore/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version       string          `json:"version"`
	TotalContribs int64           `json:"total_contribs"`
	TotalTexts    int64           `json:"total_texts"`
	TotalUsers    int64           `json:"total_users"`
	OldestContrib string          `json:"oldest_contrib,omitempty"`
	NewestContrib string          `json:"newest_contrib,omitempty"`
	TopPages      []pageCountJSON `json:"top_pages"`
}

type pageCountJSON struct {
	Site  string `json:"site"`
	Page  string `json:"page"`
	Count int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store storage.Store) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats)
	}
	return c.printStatusHuman(stats)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats) error {
	fmt.Println("Wikiscore Cache Status")
	fmt.Println("======================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Contributions: %s\n", formatNumber(stats.TotalContribs))
	fmt.Printf("Fulltexts:     %s\n", formatNumber(stats.TotalTexts))
	fmt.Printf("Users:         %s\n", formatNumber(stats.TotalUsers))

	if stats.TotalContribs > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestContrib.Format(time.RFC3339))
		fmt.Printf("Newest:        %s\n", stats.NewestContrib.Format(time.RFC3339))
	}

	if len(stats.TopPages) > 0 {
		fmt.Println("\nTop pages:")
		for _, pc := range stats.TopPages {
			fmt.Printf("  %-40s %s\n", pc.Site+":"+pc.Page, formatNumber(pc.Count))
		}
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats) error {
	out := statusJSON{
		Version:       c.version,
		TotalContribs: stats.TotalContribs,
		TotalTexts:    stats.TotalTexts,
		TotalUsers:    stats.TotalUsers,
		TopPages:      []pageCountJSON{},
	}
	if stats.TotalContribs > 0 {
		out.OldestContrib = stats.OldestContrib.Format(time.RFC3339)
		out.NewestContrib = stats.NewestContrib.Format(time.RFC3339)
	}
	for _, pc := range stats.TopPages {
		out.TopPages = append(out.TopPages, pageCountJSON{Site: pc.Site, Page: pc.Page, Count: pc.Count})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
