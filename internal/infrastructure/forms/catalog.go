// Package forms loads form configurations and their approval processes from YAML.
package forms

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	"github.com/garyjia/forms-workflow/pkg/utils"
)

// ConditionCompiler checks that a workflow condition expression is well formed
type ConditionCompiler interface {
	Compile(expression string) error
}

type catalogFile struct {
	Forms []*entity.FormConfig `yaml:"forms"`
}

// Catalog is an in-memory set of forms indexed by slug and id
type Catalog struct {
	path     string
	compiler ConditionCompiler

	mu     sync.RWMutex
	bySlug map[string]*entity.FormConfig
	byID   map[string]*entity.FormConfig
}

// Option configures a Catalog
type Option func(*Catalog)

// WithConditionCompiler validates form conditions at load time
func WithConditionCompiler(c ConditionCompiler) Option {
	return func(cat *Catalog) {
		cat.compiler = c
	}
}

// Load reads the catalog from a YAML file
func Load(path string, opts ...Option) (*Catalog, error) {
	c := &Catalog{path: path}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Sync(); err != nil {
		return nil, err
	}
	return c, nil
}

// New builds a catalog from form configs
func New(list []*entity.FormConfig, opts ...Option) (*Catalog, error) {
	c := &Catalog{}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.replace(list); err != nil {
		return nil, err
	}
	return c, nil
}

// Sync reloads the catalog file. Invalid files leave the current forms untouched.
func (c *Catalog) Sync() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("forms: reading %s: %w", c.path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("forms: parsing %s: %w", c.path, err)
	}
	if err := c.replace(f.Forms); err != nil {
		return fmt.Errorf("forms: %s: %w", c.path, err)
	}
	return nil
}

// GetBySlug returns the form with the given slug
func (c *Catalog) GetBySlug(slug string) (*entity.FormConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.bySlug[slug]
	return f, ok
}

// GetByID returns the form with the given id
func (c *Catalog) GetByID(id string) (*entity.FormConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byID[id]
	return f, ok
}

// List returns all forms sorted by slug
func (c *Catalog) List() []*entity.FormConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*entity.FormConfig, 0, len(c.bySlug))
	for _, f := range c.bySlug {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func (c *Catalog) replace(list []*entity.FormConfig) error {
	bySlug := make(map[string]*entity.FormConfig, len(list))
	byID := make(map[string]*entity.FormConfig, len(list))

	for i, f := range list {
		if f == nil || f.Slug == "" {
			return fmt.Errorf("form %d has no slug", i)
		}
		if err := utils.ValidateSlug(f.Slug); err != nil {
			return fmt.Errorf("form %d: %w", i, err)
		}
		if f.ID == "" {
			f.ID = f.Slug
		}
		if _, dup := bySlug[f.Slug]; dup {
			return fmt.Errorf("duplicate form slug %q", f.Slug)
		}
		if _, dup := byID[f.ID]; dup {
			return fmt.Errorf("duplicate form id %q", f.ID)
		}

		if f.WorkflowEnabled {
			if err := f.Process.Validate(); err != nil {
				return fmt.Errorf("form %q: %w", f.Slug, err)
			}
			if f.AllowAnonymous {
				return fmt.Errorf("form %q: anonymous submissions cannot start a workflow", f.Slug)
			}
		}
		if f.Condition != "" {
			if !f.WorkflowEnabled {
				return fmt.Errorf("form %q: condition set without workflow", f.Slug)
			}
			if c.compiler != nil {
				if err := c.compiler.Compile(f.Condition); err != nil {
					return fmt.Errorf("form %q: %w", f.Slug, err)
				}
			}
		}

		bySlug[f.Slug] = f
		byID[f.ID] = f
	}

	c.mu.Lock()
	c.bySlug, c.byID = bySlug, byID
	c.mu.Unlock()
	return nil
}

var _ port.FormCatalog = (*Catalog)(nil)
