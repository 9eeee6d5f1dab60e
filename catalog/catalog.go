// Package catalog discovers the 3D models available to scenes and fetches
// them from disk.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"gopkg.in/yaml.v3"
)

// SettingsFileName is the name of the optional settings file at the root of
// the models directory.
const SettingsFileName = "catalog.yml"

// Settings tunes how the catalog's models behave in scenes. Absent fields
// fall back to defaults.
type Settings struct {
	// The categories that never block placement.
	NonBlocking []string `yaml:"non_blocking"`

	// The grid increment clients snap positions to. Reported to clients,
	// not enforced server-side.
	GridSnap float32 `yaml:"grid_snap"`
}

// DefaultSettings returns the settings used when catalog.yml is absent.
func DefaultSettings() Settings {
	return Settings{
		NonBlocking: []string{"roads", "terrain", "park"},
		GridSnap:    0.5,
	}
}

// LoadSettings reads settings from the given file. A missing file yields the
// defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, errors.New("reading catalog settings failed").
			WithTag("path", path).
			Wrap(err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, errors.New("decoding catalog settings failed").
			WithTag("path", path).
			Wrap(err)
	}

	if settings.NonBlocking == nil {
		settings.NonBlocking = DefaultSettings().NonBlocking
	}
	if settings.GridSnap <= 0 {
		settings.GridSnap = DefaultSettings().GridSnap
	}
	return settings, nil
}

// Catalog lists the models available under a directory, grouped by category.
// It is immutable once scanned.
type Catalog struct {
	Dir      string
	Settings Settings

	categories map[string][]string
}

// Scan walks the models directory and builds the catalog. Every
// subdirectory is a category and every .glb or .gltf file in it is a model.
// Building models with a _withoutBase variant ship twice, the variant is
// skipped.
func Scan(dir string) (*Catalog, error) {
	settings, err := LoadSettings(filepath.Join(dir, SettingsFileName))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New("reading models directory failed").
			WithTag("dir", dir).
			Wrap(err)
	}

	categories := make(map[string][]string)
	count := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		category := entry.Name()

		files, err := os.ReadDir(filepath.Join(dir, category))
		if err != nil {
			return nil, errors.New("reading model category failed").
				WithTag("category", category).
				Wrap(err)
		}

		names := []string{}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			name := f.Name()

			switch strings.ToLower(filepath.Ext(name)) {
			case ".glb", ".gltf":
			default:
				continue
			}

			if category == "buildings" && strings.Contains(name, "_withoutBase") {
				continue
			}

			names = append(names, name)
			count++
		}
		categories[category] = names
	}

	logs.WithTag("dir", dir).
		WithTag("categories", len(categories)).
		WithTag("models", count).
		Info("model catalog scanned")

	return &Catalog{
		Dir:        dir,
		Settings:   settings,
		categories: categories,
	}, nil
}

// Categories returns the category names in lexical order.
func (c *Catalog) Categories() []string {
	categories := make([]string, 0, len(c.categories))
	for category := range c.categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Models returns the model file names in the given category.
func (c *Catalog) Models(category string) []string {
	return c.categories[category]
}

// All returns a copy of the full category to model names mapping.
func (c *Catalog) All() map[string][]string {
	all := make(map[string][]string, len(c.categories))
	for category, names := range c.categories {
		all[category] = append([]string{}, names...)
	}
	return all
}

// Count returns the total number of models.
func (c *Catalog) Count() int {
	count := 0
	for _, names := range c.categories {
		count += len(names)
	}
	return count
}
