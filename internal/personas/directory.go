// Package personas holds the persona directory and the persona-side prompt
// machinery: each persona is a named responder identity with its own system
// prompt and knowledge base.
package personas

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/ensemble/internal/chat"
	"github.com/haasonsaas/ensemble/internal/router"
)

// Persona is one configured responder identity.
type Persona struct {
	// Name is the mention name users type after '@' (e.g. "JohnPM").
	Name string `yaml:"name" json:"name"`

	// DisplayName is shown on delivered messages.
	DisplayName string `yaml:"display_name" json:"display_name"`

	// Role is a short title shown to the router.
	Role string `yaml:"role" json:"role"`

	// AvatarURL decorates webhook deliveries.
	AvatarURL string `yaml:"avatar_url" json:"avatar_url"`

	// SystemPrompt defines the persona's behavior.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// KnowledgeBasePath points at the persona's knowledge base file.
	KnowledgeBasePath string `yaml:"knowledge_base_path" json:"knowledge_base_path"`
}

// Directory is a read-only lookup of configured personas.
type Directory struct {
	personas []Persona
}

// NewDirectory builds a directory from already-loaded personas.
func NewDirectory(personas []Persona) *Directory {
	return &Directory{personas: personas}
}

// LoadDirectory reads personas from a YAML file. The file may be either a
// bare list of personas or a mapping with a "personas" key.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, chat.ErrConfig(fmt.Sprintf("personas: cannot read %s", path), err)
	}

	var wrapped struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Personas) > 0 {
		return validated(wrapped.Personas)
	}

	var list []Persona
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, chat.ErrConfig(fmt.Sprintf("personas: cannot parse %s", path), err)
	}
	return validated(list)
}

func validated(personas []Persona) (*Directory, error) {
	seen := make(map[string]struct{}, len(personas))
	for i := range personas {
		p := &personas[i]
		if p.Name == "" {
			return nil, chat.ErrConfig("personas: entry missing name", nil)
		}
		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return nil, chat.ErrConfig(fmt.Sprintf("personas: duplicate name %q", p.Name), nil)
		}
		seen[key] = struct{}{}
		if p.DisplayName == "" {
			p.DisplayName = p.Name
		}
	}
	return &Directory{personas: personas}, nil
}

// ByName returns the persona with the given mention name, matched
// case-insensitively.
func (d *Directory) ByName(name string) (*Persona, bool) {
	for i := range d.personas {
		if strings.EqualFold(d.personas[i].Name, name) {
			return &d.personas[i], true
		}
	}
	return nil, false
}

// Names returns all configured mention names in directory order.
func (d *Directory) Names() []string {
	names := make([]string, len(d.personas))
	for i, p := range d.personas {
		names[i] = p.Name
	}
	return names
}

// Infos returns the name/role slice the router needs.
func (d *Directory) Infos() []router.PersonaInfo {
	infos := make([]router.PersonaInfo, len(d.personas))
	for i, p := range d.personas {
		infos[i] = router.PersonaInfo{Name: p.Name, Role: p.Role}
	}
	return infos
}

// Len returns the number of configured personas.
func (d *Directory) Len() int {
	return len(d.personas)
}
