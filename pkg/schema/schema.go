// Package schema is an in-memory class registry that answers the property
// lookups the codecs make during type resolution.
package schema

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
	"gopkg.in/yaml.v3"
)

// Lookup is the read side of a schema.
type Lookup interface {
	// Property returns the declaration of field in class, following
	// superclasses.
	Property(class, field string) (Property, bool)
	// OverSize returns the over-allocation factor configured for class, or
	// 0 when none is.
	OverSize(class string) float64
}

// Property declares a field of a class.
type Property struct {
	Name        string              `yaml:"name"`
	Type        models.PropertyType `yaml:"type"`
	LinkedClass string              `yaml:"linked_class,omitempty"`
	LinkedType  models.PropertyType `yaml:"linked_type,omitempty"`
	Collate     string              `yaml:"collate,omitempty"`
}

// Class is a named set of properties.
type Class struct {
	Name       string     `yaml:"name"`
	SuperClass string     `yaml:"superclass,omitempty"`
	OverSize   float64    `yaml:"over_size,omitempty"`
	Properties []Property `yaml:"properties"`
}

// Property returns the property declared directly on c.
func (c *Class) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

type document struct {
	Classes []Class `yaml:"classes"`
}

// Registry is a Lookup that is read far more often than it is written.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

var _ Lookup = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// Define adds or replaces a class.
func (r *Registry) Define(c Class) error {
	if c.Name == "" {
		return fmt.Errorf("class name is required")
	}
	seen := make(map[string]struct{}, len(c.Properties))
	for _, p := range c.Properties {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("class %s: duplicate property %q", c.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := c
	cp.Properties = append([]Property(nil), c.Properties...)
	r.classes[c.Name] = &cp
	return nil
}

// Class returns a copy of the named class.
func (r *Registry) Class(name string) (Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	if !ok {
		return Class{}, fmt.Errorf("%w: %s", constants.ErrUnknownClass, name)
	}
	return *c, nil
}

// Classes returns the defined class names in sorted order.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Property(class, field string) (Property, bool) {
	if class == "" {
		return Property{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := make(map[string]struct{})
	for name := class; name != ""; {
		if _, loop := visited[name]; loop {
			break
		}
		visited[name] = struct{}{}
		c, ok := r.classes[name]
		if !ok {
			break
		}
		if p, ok := c.Property(field); ok {
			return p, true
		}
		name = c.SuperClass
	}
	return Property{}, false
}

func (r *Registry) OverSize(class string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.classes[class]; ok {
		return c.OverSize
	}
	return 0
}

// Load reads a YAML document of the form
//
//	classes:
//	  - name: Person
//	    properties:
//	      - name: age
//	        type: INTEGER
func Load(rd io.Reader) (*Registry, error) {
	var doc document
	if err := yaml.NewDecoder(rd).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	reg := NewRegistry()
	for _, c := range doc.Classes {
		if err := reg.Define(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadFile reads a schema from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Save writes the registry in the format accepted by Load.
func (r *Registry) Save(w io.Writer) error {
	doc := document{}
	for _, name := range r.Classes() {
		c, err := r.Class(name)
		if err != nil {
			return err
		}
		doc.Classes = append(doc.Classes, c)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	return enc.Close()
}
