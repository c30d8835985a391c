package rules

import (
	"strings"
	"time"

	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/shopspring/decimal"
)

// Outcome is the answer of one rule for one trip.
type Outcome int

const (
	NotApplicable Outcome = iota
	Pass
	Fail
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "not_applicable"
	}
}

func outcome(ok bool) Outcome {
	if ok {
		return Pass
	}
	return Fail
}

// Subject is what a rule is applied to.
type Subject struct {
	Travel    domain.TravelData
	Now       time.Time
	Converter *Converter
}

type Rule interface {
	Apply(s Subject, vars domain.RuleVars) Outcome
}

type RuleFunc func(s Subject, vars domain.RuleVars) Outcome

func (f RuleFunc) Apply(s Subject, vars domain.RuleVars) Outcome {
	return f(s, vars)
}

const (
	CodeMaxPrice         = "train_max_od_price"
	CodeAdvancePurchase  = "train_advanced_purchase"
	CodeClassMax         = "train_class_max"
	CodeOperatorPrefs    = "train_operator_preference"
	CodeRouteRestriction = "train_route_restriction"
)

// Registry holds the known rule codes.
type Registry map[string]Rule

func DefaultRegistry() Registry {
	return Registry{
		CodeMaxPrice:         RuleFunc(maxPrice),
		CodeAdvancePurchase:  RuleFunc(advancePurchase),
		CodeClassMax:         RuleFunc(classMax),
		CodeOperatorPrefs:    RuleFunc(operatorPreference),
		CodeRouteRestriction: RuleFunc(routeRestriction),
	}
}

func maxPrice(s Subject, vars domain.RuleVars) Outcome {
	train := s.Travel.Train
	if vars.MaxPrice == "" || train == nil {
		return NotApplicable
	}
	limit, err := decimal.NewFromString(vars.MaxPrice)
	if err != nil || !train.Price.IsPositive() {
		return NotApplicable
	}
	currency := vars.Currency
	if currency == "" {
		currency = "EUR"
	}
	from := train.Currency
	if from == "" {
		from = "EUR"
	}
	price, err := s.Converter.Convert(train.Price, from, currency)
	if err != nil {
		return NotApplicable
	}
	return outcome(price.LessThanOrEqual(limit))
}

// daysUntil counts whole days to t, rounding toward the past.
func daysUntil(now, t time.Time) int {
	d := t.Sub(now)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

func advancePurchase(s Subject, vars domain.RuleVars) Outcome {
	train := s.Travel.Train
	if vars.MinDays == nil || train == nil || train.DepartureDate.IsZero() {
		return NotApplicable
	}
	days := daysUntil(s.Now, train.DepartureDate)
	if vars.ExcludeSameDay && days == 0 {
		return Fail
	}
	return outcome(days >= *vars.MinDays)
}

var classLevels = map[string]int{
	"STANDARD": 1,
	"COMFORT":  2,
	"FIRST":    3,
	"BUSINESS": 4,
	"PREMIUM":  5,
}

func classLevel(class string) int {
	if l, ok := classLevels[strings.ToUpper(class)]; ok {
		return l
	}
	return 1
}

func classMax(s Subject, vars domain.RuleVars) Outcome {
	train := s.Travel.Train
	if vars.MaxClass == "" || train == nil || train.Class == "" {
		return NotApplicable
	}
	if vars.ExcludePremium && strings.EqualFold(train.Class, "PREMIUM") {
		return Fail
	}
	return outcome(classLevel(train.Class) <= classLevel(vars.MaxClass))
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func operatorPreference(s Subject, vars domain.RuleVars) Outcome {
	train := s.Travel.Train
	if train == nil || train.Operator == "" {
		return NotApplicable
	}
	if containsFold(vars.RestrictedOperators, train.Operator) {
		return Fail
	}
	if len(vars.PreferredOperators) > 0 {
		switch strings.ToUpper(vars.PreferenceLevel) {
		case "REQUIRED":
			return outcome(containsFold(vars.PreferredOperators, train.Operator))
		case "AVOID":
			return outcome(!containsFold(vars.PreferredOperators, train.Operator))
		}
	}
	return Pass
}

func matchRoute(routes []domain.Route, origin, destination string) bool {
	for _, r := range routes {
		if r.Origin == origin && r.Destination == destination {
			return true
		}
	}
	return false
}

func routeRestriction(s Subject, vars domain.RuleVars) Outcome {
	if s.Travel.Train == nil {
		return NotApplicable
	}
	origin, destination := s.Travel.Origin, s.Travel.Destination
	if origin == "" || destination == "" {
		return NotApplicable
	}
	if matchRoute(vars.RestrictedRoutes, origin, destination) {
		return Fail
	}
	if len(vars.AllowedRoutes) > 0 && !matchRoute(vars.AllowedRoutes, origin, destination) {
		return Fail
	}
	return Pass
}
