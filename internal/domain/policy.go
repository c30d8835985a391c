package domain

import "github.com/google/uuid"

type PolicyAction string

const (
	ActionHide        PolicyAction = "HIDE"
	ActionBlock       PolicyAction = "BLOCK"
	ActionRequire     PolicyAction = "APPROVE"
	ActionOutOfPolicy PolicyAction = "OUT_OF_POLICY"
)

// Result maps the action taken on a violated policy to a verdict.
func (a PolicyAction) Result() VerdictResult {
	switch a {
	case ActionHide:
		return VerdictHidden
	case ActionBlock:
		return VerdictBookingBlocked
	case ActionRequire:
		return VerdictApprovalRequired
	default:
		return VerdictOutOfPolicy
	}
}

type Route struct {
	Origin      string `json:"origin" bson:"origin"`
	Destination string `json:"destination" bson:"destination"`
}

// RuleVars holds the parameters of every known rule; each rule reads its own.
type RuleVars struct {
	MaxPrice            string   `json:"max_price,omitempty" bson:"max_price,omitempty"`
	Currency            string   `json:"currency,omitempty" bson:"currency,omitempty"`
	MinDays             *int     `json:"min_days,omitempty" bson:"min_days,omitempty"`
	ExcludeSameDay      bool     `json:"exclude_same_day,omitempty" bson:"exclude_same_day,omitempty"`
	MaxClass            string   `json:"max_class,omitempty" bson:"max_class,omitempty"`
	ExcludePremium      bool     `json:"exclude_premium,omitempty" bson:"exclude_premium,omitempty"`
	PreferredOperators  []string `json:"preferred_operators,omitempty" bson:"preferred_operators,omitempty"`
	RestrictedOperators []string `json:"restricted_operators,omitempty" bson:"restricted_operators,omitempty"`
	PreferenceLevel     string   `json:"preference_level,omitempty" bson:"preference_level,omitempty"`
	AllowedRoutes       []Route  `json:"allowed_routes,omitempty" bson:"allowed_routes,omitempty"`
	RestrictedRoutes    []Route  `json:"restricted_routes,omitempty" bson:"restricted_routes,omitempty"`
}

type RuleException struct {
	Code   string   `json:"code" bson:"code"`
	Vars   RuleVars `json:"vars" bson:"vars"`
	Active bool     `json:"active" bson:"active"`
}

type PolicyRule struct {
	ID         uuid.UUID       `json:"id" bson:"id"`
	Code       string          `json:"code" bson:"code"`
	Vars       RuleVars        `json:"vars" bson:"vars"`
	Active     bool            `json:"active" bson:"active"`
	Exceptions []RuleException `json:"exceptions" bson:"exceptions"`
}

type Policy struct {
	ID                    uuid.UUID         `json:"id" bson:"_id"`
	OrgID                 uuid.UUID         `json:"org_id" bson:"org_id"`
	Label                 string            `json:"label" bson:"label"`
	Active                bool              `json:"active" bson:"active"`
	Action                PolicyAction      `json:"action" bson:"action"`
	EnforceApproval       bool              `json:"enforce_approval" bson:"enforce_approval"`
	MessageForReservation map[string]string `json:"message_for_reservation" bson:"message_for_reservation"`
	Approvers             []uuid.UUID       `json:"approvers" bson:"approvers"`
	Rules                 []PolicyRule      `json:"rules" bson:"rules"`
}
