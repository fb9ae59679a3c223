package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrProfileIncompatible marks a profile whose engine constraint excludes
// this engine version.
var ErrProfileIncompatible = errors.New("policy profile incompatible with engine")

// Profile is the on-disk YAML form of a policy kernel.
type Profile struct {
	Name               string   `yaml:"name" json:"name"`
	Version            string   `yaml:"version,omitempty" json:"version,omitempty"`
	Engine             string   `yaml:"engine,omitempty" json:"engine,omitempty"`
	MinConsensus       float64  `yaml:"min_consensus" json:"min_consensus"`
	MinReproducibility float64  `yaml:"min_reproducibility" json:"min_reproducibility"`
	MaxConfidence      float64  `yaml:"max_confidence" json:"max_confidence"`
	ForbiddenPatterns  []string `yaml:"forbidden_patterns,omitempty" json:"forbidden_patterns,omitempty"`
	Rules              []Rule   `yaml:"rules,omitempty" json:"rules,omitempty"`
}

const profileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "min_consensus", "min_reproducibility", "max_confidence"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "engine": {"type": "string"},
    "min_consensus": {"type": "number", "minimum": 0, "maximum": 1},
    "min_reproducibility": {"type": "number", "minimum": 0, "maximum": 1},
    "max_confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "forbidden_patterns": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "expr"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "expr": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func profileSchemaCompiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const url = "https://conclave.schemas.local/policy/profile.schema.json"
		if err := c.AddResource(url, strings.NewReader(profileSchema)); err != nil {
			schemaErr = fmt.Errorf("profile schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

// LoadProfile reads a policy profile YAML, validates it against the profile
// schema, checks its engine constraint, and constructs the kernel.
func LoadProfile(path string) (*Kernel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy profile %q: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile is LoadProfile for in-memory YAML.
func ParseProfile(data []byte) (*Kernel, error) {
	schema, err := profileSchemaCompiled()
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so the schema validator sees JSON-typed values.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse policy profile: %w", err)
	}
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize policy profile: %w", err)
	}
	var doc any
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("normalize policy profile: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("policy profile rejected by schema: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse policy profile: %w", err)
	}

	if err := checkEngineConstraint(profile.Engine); err != nil {
		return nil, err
	}

	version := profile.Version
	if version == "" {
		version = profile.Name
	}

	return New(Params{
		Version:            version,
		MinConsensus:       profile.MinConsensus,
		MinReproducibility: profile.MinReproducibility,
		MaxConfidence:      profile.MaxConfidence,
		ForbiddenPatterns:  profile.ForbiddenPatterns,
		Rules:              profile.Rules,
	})
}

func checkEngineConstraint(constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid engine constraint %q: %w", constraint, err)
	}
	engine, err := semver.NewVersion(EngineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version %s: %w", EngineVersion, err)
	}
	if !c.Check(engine) {
		return fmt.Errorf("%w: engine %s does not satisfy %q",
			ErrProfileIncompatible, EngineVersion, constraint)
	}
	return nil
}
