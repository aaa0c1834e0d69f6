package planner

import (
	"fmt"
	"os"
	"strings"

	"outreach_backend/internal/outreach/domain"

	"gopkg.in/yaml.v3"
)

// Template is one channel message template. An empty body disables the step
// at runtime: its opportunities are logged as skipped, never dispatched.
type Template struct {
	ID   string `yaml:"id"`
	Body string `yaml:"body"`
}

// Templates maps a step name to its channel template.
type Templates map[string]Template

type templatesFile struct {
	Templates map[string]Template `yaml:"templates"`
}

// LoadTemplates reads the step -> template map and validates it against the
// rule table. A step in the rule table without a configured template is a
// startup error, not a silent skip at dispatch time.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}

	var file templatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse templates file: %w", err)
	}

	templates := Templates(file.Templates)
	if err := templates.Validate(); err != nil {
		return nil, err
	}
	return templates, nil
}

// Validate checks that every rule-table step has a template entry with an ID.
func (t Templates) Validate() error {
	var missing []string
	for _, rule := range domain.AllSteps() {
		tpl, ok := t[rule.Step]
		if !ok || strings.TrimSpace(tpl.ID) == "" {
			missing = append(missing, rule.Step)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("templates missing for steps: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Render substitutes personalization placeholders into the template body.
// Templates are flat {{placeholder}} maps authored by operators; there is no
// logic and no escaping context.
func (tpl Template) Render(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl.Body)
}
