// Package tiers resolves game speed names into clock settings.
package tiers

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

//go:embed tiers.yaml
var defaultFiles embed.FS

type Tier struct {
	InitialSeconds   int64 `yaml:"initial_seconds"`
	IncrementSeconds int64 `yaml:"increment_seconds"`
}

type file struct {
	Default string          `yaml:"default"`
	Tiers   map[string]Tier `yaml:"tiers"`
}

// Catalog holds the embedded tiers plus any overrides read from a directory.
type Catalog struct {
	mu    sync.RWMutex
	def   string
	tiers map[string]Tier
}

// New loads the embedded tiers, then applies *.yaml files from overrideDir
// in name order. defaultSpeed, when set, replaces the configured default.
func New(overrideDir, defaultSpeed string) (*Catalog, error) {
	c := &Catalog{tiers: make(map[string]Tier)}
	raw, err := fs.ReadFile(defaultFiles, "tiers.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded tiers: %w", err)
	}
	if err := c.apply(raw); err != nil {
		return nil, fmt.Errorf("parse embedded tiers: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	if d := normalize(defaultSpeed); d != "" {
		c.def = d
	}
	if _, ok := c.tiers[c.def]; !ok {
		return nil, fmt.Errorf("default speed %q is not a known tier", c.def)
	}
	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read tiers dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	seen := make(map[string]string)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var f file
		if err := yaml.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for speed := range f.Tiers {
			if prev, ok := seen[normalize(speed)]; ok {
				return fmt.Errorf("duplicate tier %q in %s and %s", speed, prev, name)
			}
			seen[normalize(speed)] = name
		}
		if err := c.apply(b); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func (c *Catalog) apply(b []byte) error {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for speed, t := range f.Tiers {
		if t.InitialSeconds <= 0 || t.IncrementSeconds < 0 {
			return fmt.Errorf("tier %q: initial must be positive and increment non-negative", speed)
		}
		c.tiers[normalize(speed)] = t
	}
	if d := normalize(f.Default); d != "" {
		c.def = d
	}
	return nil
}

func (c *Catalog) Default() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.def
}

// Lookup returns the tier for speed, falling back to the default tier for
// unknown or empty names. The returned name is the tier actually used.
func (c *Catalog) Lookup(speed string) (string, Tier) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name := normalize(speed)
	if t, ok := c.tiers[name]; ok {
		return name, t
	}
	return c.def, c.tiers[c.def]
}

// Speeds lists the known tier names.
func (c *Catalog) Speeds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tiers))
	for k := range c.tiers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolve turns creation settings into session settings. Positive explicit
// seconds override the tier values; negative values are rejected.
func (c *Catalog) Resolve(req *gamedto.SettingsRequest) (session.Settings, error) {
	if req == nil {
		req = &gamedto.SettingsRequest{}
	}
	if req.InitialSeconds < 0 || req.IncrementSeconds < 0 {
		return session.Settings{}, session.ErrInvalidArgs
	}
	name, t := c.Lookup(req.Speed)
	s := session.Settings{InitialSeconds: t.InitialSeconds, IncrementSeconds: t.IncrementSeconds, Speed: name}
	if req.InitialSeconds > 0 {
		s.InitialSeconds = req.InitialSeconds
	}
	if req.IncrementSeconds > 0 {
		s.IncrementSeconds = req.IncrementSeconds
	}
	return s, nil
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
