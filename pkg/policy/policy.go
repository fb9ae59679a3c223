// Package policy defines the policy kernel: the immutable safety and
// consensus configuration every decision is evaluated against. A kernel is
// constructed once; changing policy at runtime means constructing a new
// orchestrator around a new kernel.
package policy

import (
	"fmt"
)

// EngineVersion is the orchestration engine version profiles are gated
// against via their engine constraint.
const EngineVersion = "1.0.0"

// Rule is a named CEL predicate evaluated against each proposal. The
// expression sees the variables content, rationale, confidence, kind and
// metadata, and must evaluate to true for the proposal to pass.
type Rule struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// Params carries the recognized kernel options.
type Params struct {
	Version            string
	MinConsensus       float64
	MinReproducibility float64
	MaxConfidence      float64
	ForbiddenPatterns  []string
	Rules              []Rule
}

// Kernel is the read-only policy configuration. All fields are fixed at
// construction; accessors return copies of slice-valued options.
type Kernel struct {
	version            string
	minConsensus       float64
	minReproducibility float64
	maxConfidence      float64
	forbidden          []string
	rules              []Rule
}

// New validates the parameters and constructs a kernel. Thresholds must lie
// in [0,1].
func New(p Params) (*Kernel, error) {
	for name, v := range map[string]float64{
		"min_consensus":       p.MinConsensus,
		"min_reproducibility": p.MinReproducibility,
		"max_confidence":      p.MaxConfidence,
	} {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("policy %s %v out of range [0,1]", name, v)
		}
	}
	for _, r := range p.Rules {
		if r.Name == "" || r.Expr == "" {
			return nil, fmt.Errorf("policy rule requires both name and expr, got name=%q", r.Name)
		}
	}

	version := p.Version
	if version == "" {
		version = "v1"
	}

	return &Kernel{
		version:            version,
		minConsensus:       p.MinConsensus,
		minReproducibility: p.MinReproducibility,
		maxConfidence:      p.MaxConfidence,
		forbidden:          append([]string(nil), p.ForbiddenPatterns...),
		rules:              append([]Rule(nil), p.Rules...),
	}, nil
}

// Default returns the baseline kernel: consensus 0.7, reproducibility 0.85,
// confidence cap 0.95, and the stock forbidden-action patterns.
func Default() *Kernel {
	k, err := New(Params{
		Version:            "v1",
		MinConsensus:       0.7,
		MinReproducibility: 0.85,
		MaxConfidence:      0.95,
		ForbiddenPatterns: []string{
			"system_file_deletion",
			"network_hacking",
			"data_exfiltration",
			"unauthorized_access",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("default policy kernel invalid: %v", err))
	}
	return k
}

func (k *Kernel) Version() string { return k.version }

// MinConsensus is the minimum consensus strength below which a decision is
// held as pending. The gate is inclusive: strength equal to the threshold
// passes.
func (k *Kernel) MinConsensus() float64 { return k.minConsensus }

// MinReproducibility is the minimum cross-validation average a proposal
// needs to be retained for consensus.
func (k *Kernel) MinReproducibility() float64 { return k.minReproducibility }

// MaxConfidence is the cap on self-reported confidence; anything above it is
// an automatic safety reject.
func (k *Kernel) MaxConfidence() float64 { return k.maxConfidence }

// ForbiddenPatterns returns the substrings that cause immediate rejection
// when present in proposal content.
func (k *Kernel) ForbiddenPatterns() []string {
	return append([]string(nil), k.forbidden...)
}

// Rules returns the configured CEL rules.
func (k *Kernel) Rules() []Rule {
	return append([]Rule(nil), k.rules...)
}
