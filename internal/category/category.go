// Package category holds the per-category crawl definitions: listing page,
// selectors, wait conditions and the rule deciding which detail records are
// kept.
package category

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
)

//go:embed categories.yaml
var defaultDefinitions []byte

var ErrUnknownCategory = errors.New("unknown category")

// Wait conditions understood by the browser session.
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
)

type Category struct {
	Name           string          `yaml:"name"`
	Route          string          `yaml:"route"`
	OutputFile     string          `yaml:"output_file"`
	ListingURL     string          `yaml:"listing_url"`
	ListingItem    string          `yaml:"listing_item"`
	ListingWait    string          `yaml:"listing_wait"`
	ListingTimeout time.Duration   `yaml:"listing_timeout"`
	ListingSettle  time.Duration   `yaml:"listing_settle"`
	DetailWait     string          `yaml:"detail_wait"`
	DetailTimeout  time.Duration   `yaml:"detail_timeout"`
	DetailSettle   time.Duration   `yaml:"detail_settle"`
	ValidWhen      []string        `yaml:"valid_when"`
	Detail         DetailSelectors `yaml:"detail"`
}

type DetailSelectors struct {
	Title          []string `yaml:"title"`
	Price          []string `yaml:"price"`
	PriceOld       []string `yaml:"price_old"`
	Discount       []string `yaml:"discount"`
	Label          []string `yaml:"label"`
	Rating         []string `yaml:"rating"`
	Sold           []string `yaml:"sold"`
	SpecGroups     []string `yaml:"spec_groups"`
	SpecItems      []string `yaml:"spec_items"`
	StorageOptions string   `yaml:"storage_options"`
	StorageExclude []string `yaml:"storage_exclude"`
	ColorOptions   []string `yaml:"color_options"`
	Images         []string `yaml:"images"`
}

// Accepts reports whether a detail record passes this category's gate: it
// must be present and at least one of the ValidWhen fields must be set.
func (c *Category) Accepts(d *models.DetailRecord) bool {
	if d == nil {
		return false
	}
	for _, field := range c.ValidWhen {
		if d.HasField(field) {
			return true
		}
	}
	return false
}

func (c *Category) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("category name is required")
	}
	if c.ListingURL == "" {
		return fmt.Errorf("category %s: listing_url is required", c.Name)
	}
	if c.ListingItem == "" {
		return fmt.Errorf("category %s: listing_item is required", c.Name)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("category %s: output_file is required", c.Name)
	}
	if len(c.ValidWhen) == 0 {
		return fmt.Errorf("category %s: valid_when must name at least one field", c.Name)
	}
	for _, field := range c.ValidWhen {
		if !knownField(field) {
			return fmt.Errorf("category %s: unknown valid_when field %q", c.Name, field)
		}
	}
	for _, wait := range []string{c.ListingWait, c.DetailWait} {
		switch wait {
		case "", WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle:
		default:
			return fmt.Errorf("category %s: unknown wait condition %q", c.Name, wait)
		}
	}
	return nil
}

func knownField(field string) bool {
	switch field {
	case models.FieldTitle, models.FieldPrice, models.FieldLabel, models.FieldSpecifications:
		return true
	}
	return false
}

type Registry struct {
	byName  map[string]*Category
	byRoute map[string]*Category
	order   []string
}

type file struct {
	Categories []*Category `yaml:"categories"`
}

// Default returns the built-in registry.
func Default() (*Registry, error) {
	return Parse(defaultDefinitions)
}

// Load reads a registry from path, or returns the built-in one when path is
// empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("no categories defined")
	}

	r := &Registry{
		byName:  make(map[string]*Category),
		byRoute: make(map[string]*Category),
	}
	for _, c := range f.Categories {
		c.applyDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		r.byName[c.Name] = c
		if c.Route != "" {
			r.byRoute[c.Route] = c
		}
		r.order = append(r.order, c.Name)
	}
	return r, nil
}

func (c *Category) applyDefaults() {
	if c.ListingWait == "" {
		c.ListingWait = WaitDOMContentLoaded
	}
	if c.ListingTimeout == 0 {
		c.ListingTimeout = 60 * time.Second
	}
	if c.DetailWait == "" {
		c.DetailWait = WaitNetworkIdle
	}
	if c.DetailTimeout == 0 {
		c.DetailTimeout = 30 * time.Second
	}
	if len(c.Detail.Title) == 0 {
		c.Detail.Title = []string{"h1"}
	}
	if len(c.Detail.SpecItems) == 0 {
		c.Detail.SpecItems = []string{"ul.text-specifi li"}
	}
}

func (r *Registry) Get(name string) (*Category, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return c, nil
}

func (r *Registry) ByRoute(route string) (*Category, bool) {
	c, ok := r.byRoute[route]
	return c, ok
}

// All returns categories in definition order.
func (r *Registry) All() []*Category {
	out := make([]*Category, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
