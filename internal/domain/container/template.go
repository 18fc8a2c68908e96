package container

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidTemplate = errors.New("invalid template")

// Template is a schema template registered ahead of container creation.
// It is implemented by ComponentTemplate and IndexTemplate only.
type Template interface {
	TemplateName() string
	Validate() error
	Body() ([]byte, error)
	isTemplate()
}

// ComponentTemplate is a reusable block of settings, mappings and aliases.
type ComponentTemplate struct {
	Name     string         `mapstructure:"name"`
	Version  *int64         `mapstructure:"version"`
	Template map[string]any `mapstructure:"template"`
	Meta     map[string]any `mapstructure:"_meta"`
}

func (ComponentTemplate) isTemplate() {}

func (t ComponentTemplate) TemplateName() string { return t.Name }

func (t ComponentTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: component template without name", ErrInvalidTemplate)
	}
	if len(t.Template) == 0 {
		return fmt.Errorf("%w: component template %q has an empty template", ErrInvalidTemplate, t.Name)
	}
	return nil
}

func (t ComponentTemplate) Body() ([]byte, error) {
	body := map[string]any{"template": t.Template}
	if t.Version != nil {
		body["version"] = *t.Version
	}
	if len(t.Meta) > 0 {
		body["_meta"] = t.Meta
	}
	return json.Marshal(body)
}

// IndexTemplate binds component templates and settings to index patterns.
type IndexTemplate struct {
	Name          string         `mapstructure:"name"`
	IndexPatterns []string       `mapstructure:"index_patterns"`
	ComposedOf    []string       `mapstructure:"composed_of"`
	Priority      *int64         `mapstructure:"priority"`
	Version       *int64         `mapstructure:"version"`
	Template      map[string]any `mapstructure:"template"`
	Meta          map[string]any `mapstructure:"_meta"`
}

func (IndexTemplate) isTemplate() {}

func (t IndexTemplate) TemplateName() string { return t.Name }

func (t IndexTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: index template without name", ErrInvalidTemplate)
	}
	if len(t.IndexPatterns) == 0 {
		return fmt.Errorf("%w: index template %q has no index patterns", ErrInvalidTemplate, t.Name)
	}
	return nil
}

func (t IndexTemplate) Body() ([]byte, error) {
	body := map[string]any{"index_patterns": t.IndexPatterns}
	if len(t.ComposedOf) > 0 {
		body["composed_of"] = t.ComposedOf
	}
	if t.Priority != nil {
		body["priority"] = *t.Priority
	}
	if t.Version != nil {
		body["version"] = *t.Version
	}
	if len(t.Template) > 0 {
		body["template"] = t.Template
	}
	if len(t.Meta) > 0 {
		body["_meta"] = t.Meta
	}
	return json.Marshal(body)
}
