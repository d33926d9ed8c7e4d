// Package metadata holds the resource-description catalog: the static,
// read-only registry describing every indexable catalog resource, its
// primary/secondary relation, reindex mode, and contribution fan-out rules.
// The catalog is loaded once at startup and shared by reference; nothing
// mutates it afterwards.
package metadata

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ReindexMode selects the reindex strategy for a primary resource.
type ReindexMode string

const (
	// ReindexExternal delegates repopulation to an external bulk-reindex
	// producer reachable over HTTP.
	ReindexExternal ReindexMode = "external"
	// ReindexTree re-derives every document synchronously from the
	// source of truth (location hierarchy resources).
	ReindexTree ReindexMode = "tree"
	// ReindexStructural only recreates the index; repopulation happens on
	// the next external write cycle (linked-data graph resources).
	ReindexStructural ReindexMode = "structural"
)

// ContributionRule declares that entries of an array field in a resource's
// document also feed documents of another collection. The rule is
// configuration, not inferred at runtime.
type ContributionRule struct {
	Target  string `yaml:"target"`
	Field   string `yaml:"field"`
	IDField string `yaml:"idField"`
}

// ResourceDescription describes one resource type. Parent is set iff the
// resource is secondary: its documents fold into the parent's index.
type ResourceDescription struct {
	Name             string             `yaml:"name"`
	Parent           string             `yaml:"parent,omitempty"`
	ReindexMode      ReindexMode        `yaml:"reindexMode,omitempty"`
	ReindexEndpoint  string             `yaml:"reindexEndpoint,omitempty"`
	ParentIDField    string             `yaml:"parentIdField,omitempty"`
	ConsortiumShared bool               `yaml:"consortiumShared,omitempty"`
	Contributions    []ContributionRule `yaml:"contributions,omitempty"`
}

// IsSecondary reports whether the resource folds into a parent index.
func (d ResourceDescription) IsSecondary() bool {
	return d.Parent != ""
}

// Catalog is the validated, immutable set of resource descriptions.
type Catalog struct {
	byName      map[string]ResourceDescription
	secondaries map[string][]string
	primaries   []string
}

// NewCatalog validates the given descriptions and builds the lookup
// tables. Secondary resources must reference a known resource as parent.
func NewCatalog(descriptions []ResourceDescription) (*Catalog, error) {
	c := &Catalog{
		byName:      make(map[string]ResourceDescription, len(descriptions)),
		secondaries: make(map[string][]string),
	}
	for _, d := range descriptions {
		if d.Name == "" {
			return nil, fmt.Errorf("resource description without a name")
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate resource description %q", d.Name)
		}
		c.byName[d.Name] = d
	}
	for _, d := range descriptions {
		if d.IsSecondary() {
			if _, ok := c.byName[d.Parent]; !ok {
				return nil, fmt.Errorf("resource %q references unknown parent %q", d.Name, d.Parent)
			}
			c.secondaries[d.Parent] = append(c.secondaries[d.Parent], d.Name)
			continue
		}
		c.primaries = append(c.primaries, d.Name)
	}
	sort.Strings(c.primaries)
	for _, names := range c.secondaries {
		sort.Strings(names)
	}
	return c, nil
}

// Load reads resource descriptions from a YAML file. An empty path falls
// back to the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}
	var file struct {
		Resources []ResourceDescription `yaml:"resources"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	return NewCatalog(file.Resources)
}

// Default returns the built-in library-catalog resource universe.
func Default() (*Catalog, error) {
	return NewCatalog([]ResourceDescription{
		{
			Name:             "instance",
			ReindexMode:      ReindexExternal,
			ParentIDField:    "instanceId",
			ConsortiumShared: true,
			Contributions: []ContributionRule{
				{Target: "contributor", Field: "contributors", IDField: "id"},
			},
		},
		{Name: "instance_subject", Parent: "instance"},
		{Name: "contributor", Parent: "instance"},
		{Name: "authority", ReindexMode: ReindexExternal},
		{Name: "location", ReindexMode: ReindexTree},
		{Name: "campus", Parent: "location"},
		{Name: "library", Parent: "location"},
		{Name: "institution", Parent: "location"},
		{Name: "linked_data_work", ReindexMode: ReindexStructural},
		{Name: "linked_data_authority", ReindexMode: ReindexStructural},
	})
}

// Find returns the description for name, if registered.
func (c *Catalog) Find(name string) (ResourceDescription, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// PrimaryResourceNames lists every primary resource, sorted.
func (c *Catalog) PrimaryResourceNames() []string {
	out := make([]string, len(c.primaries))
	copy(out, c.primaries)
	return out
}

// SecondaryResourceNames lists the resources folding into primary,
// transitively, sorted per level.
func (c *Catalog) SecondaryResourceNames(primary string) []string {
	var out []string
	queue := append([]string(nil), c.secondaries[primary]...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		out = append(out, name)
		queue = append(queue, c.secondaries[name]...)
	}
	return out
}

// PrimaryFor resolves the primary resource owning name's index. A primary
// resolves to itself; unknown names resolve to "".
func (c *Catalog) PrimaryFor(name string) string {
	d, ok := c.byName[name]
	if !ok {
		return ""
	}
	for d.IsSecondary() {
		parent, ok := c.byName[d.Parent]
		if !ok {
			return ""
		}
		d = parent
	}
	return d.Name
}
