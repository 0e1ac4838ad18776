package models

import "fmt"

// Model maps a stable short model name to the identifier the upstream provider expects.
type Model struct {
	Name       string `yaml:"name" json:"value"`
	UpstreamID string `yaml:"upstreamID" json:"-"`
	Label      string `yaml:"label" json:"label"`
}

// Catalog is the static table of selectable models. Requests without a model use Default; requests
// naming a model that is not in the table use Fallback.
type Catalog struct {
	models   []Model
	byName   map[string]Model
	Default  string
	Fallback string
}

const (
	// DefaultModel is used when a request names no model.
	DefaultModel = "llama-70b"
	// FallbackModel is used when a request names a model the catalog does not know.
	FallbackModel = "deepseek-r1"
)

// DefaultModels is the built-in catalog table.
var DefaultModels = []Model{
	{Name: "llama-70b", UpstreamID: "llama3-70b-8192", Label: "Llama 3 70B"},
	{Name: "llama-8b", UpstreamID: "llama3-8b-8192", Label: "Llama 3 8B"},
	{Name: "deepseek-r1", UpstreamID: "deepseek-r1-distill-llama-70b", Label: "Deepseek R1"},
	{Name: "gemma-7b", UpstreamID: "gemma-7b-it", Label: "Gemma 7B"},
	{Name: "gemma2-9b", UpstreamID: "gemma2-9b-it", Label: "Gemma2 9B"},
}

// NewCatalog builds a catalog from models. Both defaultName and fallbackName must be present in
// models, and names must be unique.
func NewCatalog(models []Model, defaultName, fallbackName string) (Catalog, error) {
	if len(models) == 0 {
		return Catalog{}, fmt.Errorf("catalog needs at least one model")
	}

	byName := make(map[string]Model, len(models))
	for _, m := range models {
		if m.Name == "" || m.UpstreamID == "" {
			return Catalog{}, fmt.Errorf("model %+v needs both name and upstreamID", m)
		}
		if _, ok := byName[m.Name]; ok {
			return Catalog{}, fmt.Errorf("duplicate model name %q", m.Name)
		}
		if m.Label == "" {
			m.Label = m.Name
		}
		byName[m.Name] = m
	}
	if _, ok := byName[defaultName]; !ok {
		return Catalog{}, fmt.Errorf("default model %q is not in the catalog", defaultName)
	}
	if _, ok := byName[fallbackName]; !ok {
		return Catalog{}, fmt.Errorf("fallback model %q is not in the catalog", fallbackName)
	}

	ms := make([]Model, len(models))
	for i, m := range models {
		ms[i] = byName[m.Name]
	}

	return Catalog{
		models:   ms,
		byName:   byName,
		Default:  defaultName,
		Fallback: fallbackName,
	}, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	c, err := NewCatalog(DefaultModels, DefaultModel, FallbackModel)
	if err != nil {
		panic(err)
	}
	return c
}

// Resolve returns the model for a requested short name. An empty name resolves to the default, an
// unknown name to the fallback.
func (c Catalog) Resolve(name string) Model {
	if name == "" {
		name = c.Default
	}
	if m, ok := c.byName[name]; ok {
		return m
	}
	return c.byName[c.Fallback]
}

// Models returns the catalog entries in their configured order.
func (c Catalog) Models() []Model {
	ms := make([]Model, len(c.models))
	copy(ms, c.models)
	return ms
}

// Label returns the display label of a short name, or the name itself when it is unknown.
func (c Catalog) Label(name string) string {
	if m, ok := c.byName[name]; ok {
		return m.Label
	}
	return name
}
