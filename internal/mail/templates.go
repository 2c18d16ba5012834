package mail

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultTemplates returns the built-in notification templates used to seed
// an empty database.
func DefaultTemplates() ([]Template, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse default templates: %w", err)
	}
	for i, t := range doc.Templates {
		if t.Key == "" || t.Subject == "" || t.Body == "" {
			return nil, fmt.Errorf("default template %d is incomplete", i)
		}
	}
	return doc.Templates, nil
}
