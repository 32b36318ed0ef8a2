// Package capabilities describes the LLM tasks agents can request.
//
// A Capability is static: a name, an instruction template and, for tasks with
// a structured answer, the Go type the answer decodes into. Rendering wraps
// the instruction in the function-printer prompt the model is asked to obey.
package capabilities

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/invopop/jsonschema"

	"autogippity/pkg/factsheet"
)

//go:embed *.tpl.md
var templateFS embed.FS

// Capability names.
const (
	NameProjectScope           = "print_project_scope"
	NameSiteURLs               = "print_site_urls"
	NameConvertUserInputToGoal = "convert_user_input_to_goal"
)

// Capability is a named, static description of an LLM task.
type Capability struct {
	Name        string
	Description string
	// Instruction is the rendered template text, including the output schema
	// when the capability has a structured answer.
	Instruction string
	// Schema is the JSON Schema of the expected answer, empty for free text.
	Schema string
}

// Structured reports whether the capability answers with JSON.
func (c Capability) Structured() bool {
	return c.Schema != ""
}

// Render builds the system message content for one invocation.
func (c Capability) Render(input string) string {
	return fmt.Sprintf(
		"FUNCTION: %s INSTRUCTION: You are a function printer. You ONLY print the results of functions. "+
			"Nothing else. No commentary. Here is the input to the function: %s. "+
			"Print out what the function will return.",
		c.Instruction, input)
}

type definition struct {
	name        string
	description string
	output      any // nil for free-text answers
}

//nolint:gochecknoglobals // static capability catalogue
var definitions = []definition{
	{
		name:        NameProjectScope,
		description: "Classify a website request into CRUD, login and external data needs",
		output:      &factsheet.ProjectScope{},
	},
	{
		name:        NameSiteURLs,
		description: "List public API endpoints that need no API key",
		output:      &[]string{},
	},
	{
		name:        NameConvertUserInputToGoal,
		description: "Summarise a user request as a single build goal",
	},
}

//nolint:gochecknoglobals // loaded once from embedded templates
var (
	registry     map[string]Capability
	registryErr  error
	registryOnce sync.Once
)

// Load renders every embedded template. It only fails on a malformed
// template, which the package tests catch.
func Load() (map[string]Capability, error) {
	registryOnce.Do(func() {
		registry, registryErr = load()
	})
	return registry, registryErr
}

func load() (map[string]Capability, error) {
	caps := make(map[string]Capability, len(definitions))
	for _, def := range definitions {
		schema := ""
		if def.output != nil {
			s, err := SchemaFor(def.output)
			if err != nil {
				return nil, fmt.Errorf("failed to build schema for %s: %w", def.name, err)
			}
			schema = s
		}

		instruction, err := renderTemplate(def.name, schema)
		if err != nil {
			return nil, err
		}
		caps[def.name] = Capability{
			Name:        def.name,
			Description: def.description,
			Instruction: instruction,
			Schema:      schema,
		}
	}
	return caps, nil
}

func renderTemplate(name, schema string) (string, error) {
	file := name + ".tpl.md"
	content, err := templateFS.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", file, err)
	}
	tmpl, err := template.New(file).Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", file, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Schema string }{Schema: schema}); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", file, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// SchemaFor returns the compact JSON Schema for the type v points at.
func SchemaFor(v any) (string, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		Anonymous:                  true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Lookup returns the capability registered under name.
func Lookup(name string) (Capability, bool) {
	caps, err := Load()
	if err != nil {
		return Capability{}, false
	}
	c, ok := caps[name]
	return c, ok
}

// MustLookup is Lookup for the built-in names; it panics on an unknown name.
func MustLookup(name string) Capability {
	c, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("capabilities: unknown capability %q", name))
	}
	return c
}

// All returns every capability sorted by name.
func All() []Capability {
	caps, err := Load()
	if err != nil {
		return nil
	}
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ProjectScope is the Discovery capability.
func ProjectScope() Capability { return MustLookup(NameProjectScope) }

// SiteURLs is the external URL capability.
func SiteURLs() Capability { return MustLookup(NameSiteURLs) }

// ConvertUserInputToGoal is the managing-agent goal capability.
func ConvertUserInputToGoal() Capability { return MustLookup(NameConvertUserInputToGoal) }
