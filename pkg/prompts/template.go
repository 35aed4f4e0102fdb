// Package prompts renders versioned prompt templates and records the template
// used on the spans started while the rendered prompt is in flight.
package prompts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/traceai/pkg/scope"
)

// ErrNotFound is returned for unknown template names or versions
var ErrNotFound = errors.New("prompt template not found")

// Template is a named, versioned text/template prompt
type Template struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description,omitempty"`
	Content     string   `yaml:"content"`
	Tags        []string `yaml:"tags,omitempty"`

	once   sync.Once
	parsed *template.Template
	err    error
}

// TemplateOption configures a Template
type TemplateOption func(*Template)

// WithVersion sets the template version
func WithVersion(version string) TemplateOption {
	return func(t *Template) {
		t.Version = version
	}
}

// WithDescription sets the template description
func WithDescription(description string) TemplateOption {
	return func(t *Template) {
		t.Description = description
	}
}

// WithTags sets the template tags
func WithTags(tags ...string) TemplateOption {
	return func(t *Template) {
		t.Tags = tags
	}
}

// New creates a template at version 1.0.0 unless WithVersion says otherwise
func New(name, content string, options ...TemplateOption) *Template {
	tmpl := &Template{Name: name, Content: content, Version: "1.0.0"}
	for _, option := range options {
		option(tmpl)
	}
	return tmpl
}

// Render renders the template with the given data
func (t *Template) Render(data map[string]interface{}) (string, error) {
	t.once.Do(func() {
		t.parsed, t.err = template.New(t.Name).Option("missingkey=error").Parse(t.Content)
	})
	if t.err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", t.Name, t.err)
	}

	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t.Name, err)
	}
	return buf.String(), nil
}

// Apply renders the template and returns a context whose scope carries the
// template, its version and data. Spans started from that context record them.
func (t *Template) Apply(ctx context.Context, data map[string]interface{}) (context.Context, string, error) {
	prompt, err := t.Render(data)
	if err != nil {
		return ctx, "", err
	}
	return scope.With(ctx, scope.WithPromptTemplate(t.Content, t.Version, data)), prompt, nil
}

// Library holds templates by name and version
type Library struct {
	mu        sync.RWMutex
	templates map[string]map[string]*Template
}

// NewLibrary creates an empty library
func NewLibrary() *Library {
	return &Library{templates: make(map[string]map[string]*Template)}
}

// Add stores tmpl, replacing a template of the same name and version
func (l *Library) Add(tmpl *Template) {
	l.mu.Lock()
	defer l.mu.Unlock()
	versions, ok := l.templates[tmpl.Name]
	if !ok {
		versions = make(map[string]*Template)
		l.templates[tmpl.Name] = versions
	}
	versions[tmpl.Version] = tmpl
}

// Get returns the template of name at version. An empty version selects the
// latest one.
func (l *Library) Get(name, version string) (*Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	versions := l.templates[name]
	if version == "" {
		version = latest(versions)
	}
	tmpl, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, name, version)
	}
	return tmpl, nil
}

// Apply looks up a template and applies it, see Template.Apply
func (l *Library) Apply(ctx context.Context, name, version string, data map[string]interface{}) (context.Context, string, error) {
	tmpl, err := l.Get(name, version)
	if err != nil {
		return ctx, "", err
	}
	return tmpl.Apply(ctx, data)
}

// LoadDir adds every *.yaml and *.yml template file of dir to the library
func (l *Library) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read template directory: %w", err)
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		tmpl := &Template{}
		if err := yaml.Unmarshal(data, tmpl); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}
		if tmpl.Name == "" {
			tmpl.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		if tmpl.Version == "" {
			tmpl.Version = "1.0.0"
		}
		l.Add(tmpl)
	}
	return nil
}

// latest picks the highest version, comparing dot separated numeric parts
func latest(versions map[string]*Template) string {
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return versionLess(keys[i], keys[j]) })
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

func versionLess(a, b string) bool {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] == pb[i] {
			continue
		}
		if len(pa[i]) != len(pb[i]) {
			return len(pa[i]) < len(pb[i])
		}
		return pa[i] < pb[i]
	}
	return len(pa) < len(pb)
}
