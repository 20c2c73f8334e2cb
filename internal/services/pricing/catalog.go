package pricing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/omnigate/omnigate/internal/models"

	"gopkg.in/yaml.v3"
)

// Catalog is the read-only model pricing table. Lookups are lock-free; a
// reload builds a fresh table and swaps the pointer atomically so in-flight
// readers never observe a partially updated catalog.
type Catalog struct {
	path    string
	entries atomic.Pointer[map[string]*models.PricingEntry]
}

// Load reads the catalog file and returns a ready Catalog
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file and atomically replaces the table
func (c *Catalog) Reload() error {
	table, err := loadFile(c.path)
	if err != nil {
		return err
	}
	c.entries.Store(&table)
	return nil
}

// Resolve looks up the pricing entry for a model id
func (c *Catalog) Resolve(modelID string) (*models.PricingEntry, error) {
	table := *c.entries.Load()
	entry, ok := table[modelID]
	if !ok {
		return nil, models.NewUnsupportedModelError(modelID)
	}
	return entry, nil
}

// Entries returns a snapshot of all catalog entries, sorted by model id
func (c *Catalog) Entries() []*models.PricingEntry {
	table := *c.entries.Load()
	entries := make([]*models.PricingEntry, 0, len(table))
	for _, entry := range table {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModelID < entries[j].ModelID
	})
	return entries
}

// Len returns the number of models in the catalog
func (c *Catalog) Len() int {
	return len(*c.entries.Load())
}

func loadFile(path string) (map[string]*models.PricingEntry, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid catalog file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing catalog %s: %w", cleanPath, err)
	}

	var raw map[string]*models.PricingEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pricing catalog: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("pricing catalog %s contains no models", cleanPath)
	}

	table := make(map[string]*models.PricingEntry, len(raw))
	for modelID, entry := range raw {
		if entry == nil {
			return nil, fmt.Errorf("model %s: empty catalog entry", modelID)
		}
		entry.ModelID = modelID
		if err := validateEntry(entry); err != nil {
			return nil, err
		}
		table[modelID] = entry
	}

	return table, nil
}

func validateEntry(entry *models.PricingEntry) error {
	if !entry.Provider.Valid() {
		return fmt.Errorf("model %s: unknown provider %q", entry.ModelID, entry.Provider)
	}
	if entry.MaxOutputTokens <= 0 {
		return fmt.Errorf("model %s: max_output_tokens must be positive", entry.ModelID)
	}
	if entry.Pricing.InputPer1K < 0 || entry.Pricing.OutputPer1K < 0 {
		return fmt.Errorf("model %s: prices must be non-negative", entry.ModelID)
	}
	if strings.TrimSpace(entry.DisplayName) == "" {
		entry.DisplayName = entry.ModelID
	}
	return nil
}
