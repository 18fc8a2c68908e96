package storage

import (
	"context"
	"fmt"

	"github.com/mimir-go/internal/domain/container"
	"github.com/mitchellh/mapstructure"
)

// Directive selects what Configure provisions.
type Directive int

const (
	DirectiveComponentTemplate Directive = iota + 1
	DirectiveIndexTemplate
)

var directiveNames = map[string]Directive{
	"create component template": DirectiveComponentTemplate,
	"create index template":     DirectiveIndexTemplate,
}

func (d Directive) String() string {
	switch d {
	case DirectiveComponentTemplate:
		return "create component template"
	case DirectiveIndexTemplate:
		return "create index template"
	default:
		return fmt.Sprintf("directive(%d)", int(d))
	}
}

// ParseDirective resolves a directive name. Unknown names fail with
// ErrUnrecognizedDirective.
func ParseDirective(name string) (Directive, error) {
	d, ok := directiveNames[name]
	if !ok {
		return 0, &Error{Kind: ErrUnrecognizedDirective, Directive: name}
	}
	return d, nil
}

// DecodeTemplate shapes cfg into the template the directive provisions. Keys
// are matched exactly and kept as given: mapping field names are
// case-sensitive. Unknown top-level keys are rejected.
func DecodeTemplate(d Directive, cfg map[string]any) (container.Template, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", container.ErrInvalidTemplate)
	}

	var tpl container.Template
	switch d {
	case DirectiveComponentTemplate:
		var t container.ComponentTemplate
		if err := decode(cfg, &t); err != nil {
			return nil, err
		}
		tpl = t
	case DirectiveIndexTemplate:
		var t container.IndexTemplate
		if err := decode(cfg, &t); err != nil {
			return nil, err
		}
		tpl = t
	default:
		return nil, &Error{Kind: ErrUnrecognizedDirective, Directive: d.String()}
	}

	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return tpl, nil
}

func decode(cfg map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %v", container.ErrInvalidTemplate, err)
	}
	return nil
}

// Configure parses directive, decodes cfg for it and registers the resulting
// template. An unknown directive never reaches the backend.
func (s *Storage) Configure(ctx context.Context, directive string, cfg map[string]any) error {
	d, err := ParseDirective(directive)
	if err != nil {
		return err
	}

	tpl, err := DecodeTemplate(d, cfg)
	if err != nil {
		name, _ := cfg["name"].(string)
		return &Error{Kind: ErrTemplateCreation, Template: name, Cause: err}
	}

	return s.ApplyTemplate(ctx, tpl)
}

// ApplyTemplate registers an already shaped template.
func (s *Storage) ApplyTemplate(ctx context.Context, tpl container.Template) error {
	name := tpl.TemplateName()
	fail := func(err error) error {
		return &Error{Kind: ErrTemplateCreation, Template: name, Cause: err}
	}

	if err := tpl.Validate(); err != nil {
		return fail(err)
	}
	body, err := tpl.Body()
	if err != nil {
		return fail(err)
	}

	switch tpl.(type) {
	case container.ComponentTemplate:
		err = s.backend.PutComponentTemplate(ctx, name, body)
	case container.IndexTemplate:
		err = s.backend.PutIndexTemplate(ctx, name, body)
	default:
		err = fmt.Errorf("unsupported template %T", tpl)
	}
	if err != nil {
		return fail(err)
	}

	s.logger.Info("Template registered", "template", name, "kind", fmt.Sprintf("%T", tpl))
	return nil
}
