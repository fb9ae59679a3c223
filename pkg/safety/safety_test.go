package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conclave/pkg/policy"
	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

func kernelWith(t *testing.T, p policy.Params) *policy.Kernel {
	t.Helper()
	k, err := policy.New(p)
	require.NoError(t, err)
	return k
}

func TestValidateForbiddenPatterns(t *testing.T) {
	v, err := NewValidator(kernelWith(t, policy.Params{
		MaxConfidence:     0.95,
		ForbiddenPatterns: []string{"data_exfiltration", "NETWORK_HACKING"},
	}))
	require.NoError(t, err)

	t.Run("Case Insensitive Match", func(t *testing.T) {
		p := worker.NewProposal("w", worker.KindReasoning,
			"step 3 performs Data_Exfiltration to a remote host", "r", 0.5)
		verdict := v.Validate(p)

		assert.False(t, verdict.Accepted)
		assert.Equal(t, RuleForbiddenPattern, verdict.Rule)
		assert.Contains(t, verdict.Reason, "data_exfiltration")
	})

	t.Run("Pattern Case Folded Too", func(t *testing.T) {
		p := worker.NewProposal("w", worker.KindReasoning,
			"attempt network_hacking now", "r", 0.5)
		assert.False(t, v.Validate(p).Accepted)
	})

	t.Run("Clean Content Passes", func(t *testing.T) {
		p := worker.NewProposal("w", worker.KindReasoning, "a safe plan", "r", 0.5)
		verdict := v.Validate(p)
		assert.True(t, verdict.Accepted)
		assert.Equal(t, "pass", verdict.Reason)
	})

	t.Run("Rejection Never Mutates", func(t *testing.T) {
		p := worker.NewProposal("w", worker.KindReasoning, "data_exfiltration", "r", 0.5)
		before := *p
		_ = v.Validate(p)
		assert.Equal(t, before.Content, p.Content)
		assert.Equal(t, before.Confidence, p.Confidence)
		assert.Equal(t, before.Score, p.Score)
	})
}

func TestValidateConfidenceCap(t *testing.T) {
	v, err := NewValidator(kernelWith(t, policy.Params{MaxConfidence: 0.95}))
	require.NoError(t, err)

	t.Run("Above Cap Rejected Regardless Of Content", func(t *testing.T) {
		p := worker.NewProposal("w", worker.KindVerification, "perfectly safe", "r", 0.99)
		verdict := v.Validate(p)

		assert.False(t, verdict.Accepted)
		assert.Equal(t, RuleMaxConfidence, verdict.Rule)
		assert.Contains(t, verdict.Reason, "0.990")
		assert.Contains(t, verdict.Reason, "0.950")
	})

	t.Run("At Cap Passes", func(t *testing.T) {
		p := worker.NewProposal("w", worker.KindVerification, "safe", "r", 0.95)
		assert.True(t, v.Validate(p).Accepted)
	})
}

func TestValidateCELRules(t *testing.T) {
	t.Run("Rule Passes And Fails", func(t *testing.T) {
		v, err := NewValidator(kernelWith(t, policy.Params{
			MaxConfidence: 0.95,
			Rules: []policy.Rule{
				{Name: "needs_rationale", Expr: `rationale.size() > 0`},
				{Name: "reasoning_floor", Expr: `kind != "reasoning" || confidence >= 0.3`},
			},
		}))
		require.NoError(t, err)

		ok := worker.NewProposal("w", worker.KindReasoning, "c", "because", 0.5)
		assert.True(t, v.Validate(ok).Accepted)

		bad := worker.NewProposal("w", worker.KindReasoning, "c", "because", 0.1)
		verdict := v.Validate(bad)
		assert.False(t, verdict.Accepted)
		assert.Equal(t, "reasoning_floor", verdict.Rule)
		assert.Contains(t, verdict.Reason, "reasoning_floor")
	})

	t.Run("Non Boolean Rule Fails Closed", func(t *testing.T) {
		v, err := NewValidator(kernelWith(t, policy.Params{
			MaxConfidence: 0.95,
			Rules:         []policy.Rule{{Name: "weird", Expr: `confidence + 1.0`}},
		}))
		require.NoError(t, err)

		verdict := v.Validate(worker.NewProposal("w", worker.KindDomain, "c", "r", 0.5))
		assert.False(t, verdict.Accepted)
		assert.Equal(t, "weird", verdict.Rule)
	})

	t.Run("Compile Error Surfaces At Construction", func(t *testing.T) {
		_, err := NewValidator(kernelWith(t, policy.Params{
			MaxConfidence: 0.95,
			Rules:         []policy.Rule{{Name: "broken", Expr: `confidence >=`}},
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})
}

func TestValidateOrder(t *testing.T) {
	// Forbidden pattern is checked before the confidence cap.
	v, err := NewValidator(kernelWith(t, policy.Params{
		MaxConfidence:     0.5,
		ForbiddenPatterns: []string{"unauthorized_access"},
	}))
	require.NoError(t, err)

	p := worker.NewProposal("w", worker.KindDomain, "try unauthorized_access", "r", 0.9)
	verdict := v.Validate(p)
	assert.Equal(t, RuleForbiddenPattern, verdict.Rule)
}
