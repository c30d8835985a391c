package rules_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy/rules"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPolicies []domain.Policy

func (s staticPolicies) ActivePolicies(context.Context, uuid.UUID) ([]domain.Policy, error) {
	return s, nil
}

var now = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

func trainTrip(price, currency, class, operator string, departure time.Time) domain.TravelData {
	return domain.TravelData{
		Origin:      "paris",
		Destination: "lyon",
		Train: &domain.TrainDetails{
			Price:         decimal.RequireFromString(price),
			Currency:      currency,
			Class:         class,
			Operator:      operator,
			DepartureDate: departure,
		},
	}
}

func engine(policies ...domain.Policy) *rules.Engine {
	return rules.NewEngine(staticPolicies(policies), observability.NewNopLogger()).WithClock(func() time.Time { return now })
}

func rule(code string, vars domain.RuleVars) domain.PolicyRule {
	return domain.PolicyRule{ID: uuid.New(), Code: code, Vars: vars, Active: true}
}

func intp(n int) *int { return &n }

func TestEngine_NoPolicies(t *testing.T) {
	v, err := engine().Evaluate(t.Context(), trainTrip("10", "EUR", "STANDARD", "SNCF", now), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictNotSpecified, v.Result)
	assert.Zero(t, v.PoliciesEvaluated)
}

func TestEngine_MaxPriceWithConversion(t *testing.T) {
	p := domain.Policy{
		ID: uuid.New(), Label: "Price cap", Active: true, Action: domain.ActionOutOfPolicy,
		Rules: []domain.PolicyRule{rule(rules.CodeMaxPrice, domain.RuleVars{MaxPrice: "100", Currency: "EUR"})},
	}

	// 110 USD is 100.10 EUR
	v, err := engine(p).Evaluate(t.Context(), trainTrip("110", "USD", "STANDARD", "SNCF", now), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictOutOfPolicy, v.Result)
	assert.Equal(t, []string{"This booking is out of policy: Price cap"}, v.Messages)

	v, err = engine(p).Evaluate(t.Context(), trainTrip("109", "USD", "STANDARD", "SNCF", now), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictInPolicy, v.Result)
	assert.Empty(t, v.Messages)
}

func TestEngine_ExceptionOverridesFailure(t *testing.T) {
	r := rule(rules.CodeClassMax, domain.RuleVars{MaxClass: "STANDARD"})
	r.Exceptions = []domain.RuleException{{
		Code:   rules.CodeOperatorPrefs,
		Vars:   domain.RuleVars{PreferredOperators: []string{"eurostar"}, PreferenceLevel: "REQUIRED"},
		Active: true,
	}}
	p := domain.Policy{ID: uuid.New(), Label: "Class", Active: true, Action: domain.ActionBlock, Rules: []domain.PolicyRule{r}}

	v, err := engine(p).Evaluate(t.Context(), trainTrip("50", "EUR", "FIRST", "Eurostar", now), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictInPolicy, v.Result)

	v, err = engine(p).Evaluate(t.Context(), trainTrip("50", "EUR", "FIRST", "SNCF", now), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictBookingBlocked, v.Result)
	assert.Equal(t, []string{"Booking blocked by policy: Class"}, v.Messages)
}

func TestEngine_MostRestrictiveWinsAndApproversDeduped(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	enforce := domain.Policy{
		ID: uuid.New(), Label: "Managers", Active: true, EnforceApproval: true,
		Approvers: []uuid.UUID{a, b},
	}
	advance := domain.Policy{
		ID: uuid.New(), Label: "Advance", Active: true, Action: domain.ActionRequire,
		Approvers: []uuid.UUID{b},
		Rules:     []domain.PolicyRule{rule(rules.CodeAdvancePurchase, domain.RuleVars{MinDays: intp(7)})},
		MessageForReservation: map[string]string{
			"train": "Book trains a week ahead",
		},
	}
	oop := domain.Policy{
		ID: uuid.New(), Label: "Routes", Active: true, Action: domain.ActionOutOfPolicy,
		Rules: []domain.PolicyRule{rule(rules.CodeRouteRestriction, domain.RuleVars{
			RestrictedRoutes: []domain.Route{{Origin: "paris", Destination: "lyon"}},
		})},
	}

	v, err := engine(oop, enforce, advance).Evaluate(t.Context(), trainTrip("50", "EUR", "STANDARD", "SNCF", now.Add(48*time.Hour)), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApprovalRequired, v.Result)
	assert.Equal(t, []string{
		"This booking is out of policy: Routes",
		"Approval required due to policy: Managers",
		"Book trains a week ahead",
	}, v.Messages)
	assert.Equal(t, []uuid.UUID{a, b}, v.Approvers)
	assert.Equal(t, 3, v.PoliciesEvaluated)
}

func TestEngine_HiddenBeatsEverything(t *testing.T) {
	hide := domain.Policy{
		ID: uuid.New(), Label: "No premium", Active: true, Action: domain.ActionHide,
		Rules: []domain.PolicyRule{rule(rules.CodeClassMax, domain.RuleVars{MaxClass: "PREMIUM", ExcludePremium: true})},
	}
	enforce := domain.Policy{ID: uuid.New(), Label: "Managers", Active: true, EnforceApproval: true}

	v, err := engine(enforce, hide).Evaluate(t.Context(), trainTrip("50", "EUR", "premium", "SNCF", now), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictHidden, v.Result)
}

func TestEngine_InactiveAndUnknownRulesIgnored(t *testing.T) {
	inactive := rule(rules.CodeMaxPrice, domain.RuleVars{MaxPrice: "1"})
	inactive.Active = false
	p := domain.Policy{
		ID: uuid.New(), Label: "Misc", Active: true, Action: domain.ActionBlock,
		Rules: []domain.PolicyRule{inactive, rule("flight_max_price", domain.RuleVars{MaxPrice: "1"})},
	}
	v, err := engine(p).Evaluate(t.Context(), trainTrip("50", "EUR", "STANDARD", "SNCF", now), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictInPolicy, v.Result)
}

func TestRules_Outcomes(t *testing.T) {
	reg := rules.DefaultRegistry()
	conv := rules.NewConverter(rules.DefaultRates())
	subject := func(td domain.TravelData) rules.Subject {
		return rules.Subject{Travel: td, Now: now, Converter: conv}
	}

	tests := []struct {
		name string
		code string
		vars domain.RuleVars
		td   domain.TravelData
		want rules.Outcome
	}{
		{"price without limit", rules.CodeMaxPrice, domain.RuleVars{}, trainTrip("10", "EUR", "", "", now), rules.NotApplicable},
		{"price unknown currency", rules.CodeMaxPrice, domain.RuleVars{MaxPrice: "100", Currency: "CHF"}, trainTrip("10", "EUR", "", "", now), rules.NotApplicable},
		{"price at limit", rules.CodeMaxPrice, domain.RuleVars{MaxPrice: "10"}, trainTrip("10", "EUR", "", "", now), rules.Pass},
		{"same day excluded", rules.CodeAdvancePurchase, domain.RuleVars{MinDays: intp(0), ExcludeSameDay: true}, trainTrip("10", "EUR", "", "", now.Add(3*time.Hour)), rules.Fail},
		{"same day allowed", rules.CodeAdvancePurchase, domain.RuleVars{MinDays: intp(0)}, trainTrip("10", "EUR", "", "", now.Add(3*time.Hour)), rules.Pass},
		{"advance without departure", rules.CodeAdvancePurchase, domain.RuleVars{MinDays: intp(1)}, trainTrip("10", "EUR", "", "", time.Time{}), rules.NotApplicable},
		{"class above max", rules.CodeClassMax, domain.RuleVars{MaxClass: "comfort"}, trainTrip("10", "EUR", "BUSINESS", "", now), rules.Fail},
		{"unknown class counts as standard", rules.CodeClassMax, domain.RuleVars{MaxClass: "STANDARD"}, trainTrip("10", "EUR", "SLEEPER", "", now), rules.Pass},
		{"restricted operator", rules.CodeOperatorPrefs, domain.RuleVars{RestrictedOperators: []string{"sncf"}}, trainTrip("10", "EUR", "", "SNCF", now), rules.Fail},
		{"avoided operator", rules.CodeOperatorPrefs, domain.RuleVars{PreferredOperators: []string{"SNCF"}, PreferenceLevel: "AVOID"}, trainTrip("10", "EUR", "", "sncf", now), rules.Fail},
		{"preferred operator is informational", rules.CodeOperatorPrefs, domain.RuleVars{PreferredOperators: []string{"DB"}}, trainTrip("10", "EUR", "", "SNCF", now), rules.Pass},
		{"route not allowed", rules.CodeRouteRestriction, domain.RuleVars{AllowedRoutes: []domain.Route{{Origin: "paris", Destination: "nice"}}}, trainTrip("10", "EUR", "", "", now), rules.Fail},
		{"route without train", rules.CodeRouteRestriction, domain.RuleVars{}, domain.TravelData{Origin: "a", Destination: "b"}, rules.NotApplicable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg[tt.code].Apply(subject(tt.td), tt.vars))
		})
	}
}

func TestConverter_Convert(t *testing.T) {
	conv := rules.NewConverter(rules.DefaultRates())
	got, err := conv.Convert(decimal.RequireFromString("10"), "gbp", "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("11.8")))

	_, err = conv.Convert(decimal.NewFromInt(1), "EUR", "JPY")
	assert.Error(t, err)
}
