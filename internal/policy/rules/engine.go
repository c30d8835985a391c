package rules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type PolicySource interface {
	ActivePolicies(ctx context.Context, orgID uuid.UUID) ([]domain.Policy, error)
}

// Engine evaluates trips against the active policies of an organization.
type Engine struct {
	policies  PolicySource
	registry  Registry
	converter *Converter
	now       func() time.Time
	logger    observability.Logger
}

func NewEngine(policies PolicySource, logger observability.Logger) *Engine {
	return &Engine{
		policies:  policies,
		registry:  DefaultRegistry(),
		converter: NewConverter(DefaultRates()),
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

type policyResult struct {
	policy domain.Policy
	result domain.VerdictResult
}

func (e *Engine) Evaluate(ctx context.Context, td domain.TravelData, orgID, userID uuid.UUID) (domain.PolicyVerdict, error) {
	policies, err := e.policies.ActivePolicies(ctx, orgID)
	if err != nil {
		return domain.PolicyVerdict{}, err
	}
	if len(policies) == 0 {
		return domain.NotSpecified(), nil
	}

	subject := Subject{Travel: td, Now: e.now().UTC(), Converter: e.converter}
	results := make([]policyResult, 0, len(policies))
	for _, p := range policies {
		results = append(results, policyResult{policy: p, result: e.evaluatePolicy(subject, p)})
	}

	verdict := domain.PolicyVerdict{
		Result:            combine(results),
		Messages:          messages(results, travelType(td)),
		Approvers:         approvers(results),
		PoliciesEvaluated: len(policies),
	}
	e.logger.WithFields(map[string]interface{}{
		"org_id":  orgID,
		"user_id": userID,
		"result":  verdict.Result,
	}).Debug("policies evaluated")
	return verdict, nil
}

func (e *Engine) evaluatePolicy(s Subject, p domain.Policy) domain.VerdictResult {
	violated := false
	for _, rule := range p.Rules {
		if !rule.Active {
			continue
		}
		def, ok := e.registry[rule.Code]
		if !ok {
			e.logger.WithField("rule_code", rule.Code).Warn("unknown rule")
			continue
		}
		out := def.Apply(s, rule.Vars)
		if out == Fail && e.excepted(s, rule.Exceptions) {
			out = Pass
		}
		if out == Fail {
			violated = true
		}
	}

	switch {
	case violated:
		return p.Action.Result()
	case p.EnforceApproval:
		return domain.VerdictApprovalRequired
	default:
		return domain.VerdictInPolicy
	}
}

// excepted reports whether an active exception passes for a failed rule.
func (e *Engine) excepted(s Subject, exceptions []domain.RuleException) bool {
	for _, ex := range exceptions {
		if !ex.Active {
			continue
		}
		def, ok := e.registry[ex.Code]
		if !ok {
			continue
		}
		if def.Apply(s, ex.Vars) == Pass {
			return true
		}
	}
	return false
}

func combine(results []policyResult) domain.VerdictResult {
	final := domain.VerdictInPolicy
	top := 0
	for _, r := range results {
		if sev := r.result.Severity(); sev > top {
			top = sev
			final = r.result
		}
	}
	return final
}

func travelType(td domain.TravelData) string {
	if td.Train != nil {
		return "train"
	}
	return "default"
}

func messages(results []policyResult, travelType string) []string {
	out := []string{}
	for _, r := range results {
		if r.result == domain.VerdictInPolicy || r.result == domain.VerdictNotSpecified {
			continue
		}
		if msg := r.policy.MessageForReservation[travelType]; msg != "" {
			out = append(out, msg)
			continue
		}
		if msg := r.policy.MessageForReservation["default"]; msg != "" {
			out = append(out, msg)
			continue
		}
		switch r.result {
		case domain.VerdictApprovalRequired:
			out = append(out, "Approval required due to policy: "+r.policy.Label)
		case domain.VerdictOutOfPolicy:
			out = append(out, "This booking is out of policy: "+r.policy.Label)
		case domain.VerdictBookingBlocked:
			out = append(out, "Booking blocked by policy: "+r.policy.Label)
		}
	}
	return out
}

func approvers(results []policyResult) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	out := []uuid.UUID{}
	for _, r := range results {
		if r.result != domain.VerdictApprovalRequired {
			continue
		}
		for _, id := range r.policy.Approvers {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
