// Package policy holds the rule tables every deterministic stage reads:
// routing, emergency thresholds, service catalog, zones, pricing, payment
// terms and open roles. A Policy is built once at start-up and shared
// read-only; nothing in the request path mutates it.
package policy

import (
	"strings"

	"command-pipeline/internal/models"
)

type Policy struct {
	Routing       map[models.IntentKind]models.BrainID `yaml:"routing"`
	Emergency     EmergencyPolicy                      `yaml:"emergency"`
	Priorities    map[models.UrgencyLevel]string       `yaml:"priorities"`
	Catalog       CatalogPolicy                        `yaml:"catalog"`
	Zones         []Zone                               `yaml:"zones"`
	Revenue       RevenuePolicy                        `yaml:"revenue"`
	Finance       FinancePolicy                        `yaml:"finance"`
	People        PeoplePolicy                         `yaml:"people"`
	Notifications NotificationPolicy                   `yaml:"notifications"`
}

// Emergency conditions.
const (
	ConditionAlways          = "always"
	ConditionIndoorTempBelow = "indoor_temp_below"
	ConditionIndoorTempAbove = "indoor_temp_above"
)

type EmergencyPolicy struct {
	Rules []EmergencyRule `yaml:"rules"`
}

// EmergencyRule elevates a failure type to emergency when its measured
// condition holds.
type EmergencyRule struct {
	FailureType string `yaml:"failure_type"`
	Condition   string `yaml:"condition"`
	ThresholdF  int    `yaml:"threshold_f"`
	Reason      string `yaml:"reason"`
}

// Qualifies evaluates the threshold table. tempF is nil when no temperature
// was reported alongside the failure.
func (e EmergencyPolicy) Qualifies(failureType string, tempF *int) (bool, string) {
	for _, rule := range e.Rules {
		if rule.FailureType != failureType {
			continue
		}
		switch rule.Condition {
		case ConditionAlways:
			return true, rule.Reason
		case ConditionIndoorTempBelow:
			if tempF != nil && *tempF < rule.ThresholdF {
				return true, rule.Reason
			}
		case ConditionIndoorTempAbove:
			if tempF != nil && *tempF > rule.ThresholdF {
				return true, rule.Reason
			}
		}
	}
	return false, ""
}

type CatalogPolicy struct {
	DefaultCode string         `yaml:"default_code"`
	Entries     []ServiceEntry `yaml:"entries"`
}

type ServiceEntry struct {
	Code            string   `yaml:"code"`
	Name            string   `yaml:"name"`
	Match           []string `yaml:"match"`
	SystemTypes     []string `yaml:"system_types"`
	DurationMinutes int      `yaml:"duration_minutes"`
	SkillLevel      int      `yaml:"skill_level"`
}

// MatchService returns the first entry listing key, restricted to the system
// type when the entry names any, falling back to the default entry.
func (c CatalogPolicy) MatchService(key, systemType string) ServiceEntry {
	for _, entry := range c.Entries {
		if !contains(entry.Match, key) {
			continue
		}
		if len(entry.SystemTypes) > 0 && !contains(entry.SystemTypes, systemType) {
			continue
		}
		return entry
	}
	for _, entry := range c.Entries {
		if entry.Code == c.DefaultCode {
			return entry
		}
	}
	return ServiceEntry{Code: c.DefaultCode, DurationMinutes: 60, SkillLevel: 1}
}

type Zone struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	PostalCodes []string     `yaml:"postal_codes"`
	Cities      []string     `yaml:"cities"`
	Technicians []Technician `yaml:"technicians"`
}

type Technician struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Phone      string `yaml:"phone"`
	SkillLevel int    `yaml:"skill_level"`
	OnCall     bool   `yaml:"on_call"`
}

// ZoneFor maps an address to a zone by postal code, then by city.
func (p *Policy) ZoneFor(loc *models.Location) (Zone, bool) {
	if loc == nil {
		return Zone{}, false
	}
	if loc.PostalCode != "" {
		for _, z := range p.Zones {
			if contains(z.PostalCodes, loc.PostalCode) {
				return z, true
			}
		}
	}
	if loc.City != "" {
		for _, z := range p.Zones {
			for _, city := range z.Cities {
				if strings.EqualFold(city, loc.City) {
					return z, true
				}
			}
		}
	}
	return Zone{}, false
}

// AssignTechnician picks the first technician with enough skill. Emergencies
// go to on-call technicians first.
func (z Zone) AssignTechnician(requiredSkill int, emergency bool) (Technician, bool) {
	if emergency {
		for _, tech := range z.Technicians {
			if tech.OnCall && tech.SkillLevel >= requiredSkill {
				return tech, true
			}
		}
	}
	for _, tech := range z.Technicians {
		if tech.SkillLevel >= requiredSkill {
			return tech, true
		}
	}
	return Technician{}, false
}

// PriorityFor maps urgency to a priority tier; unset urgency gets the
// "standard" tier.
func (p *Policy) PriorityFor(u models.UrgencyLevel) string {
	if tier, ok := p.Priorities[u]; ok {
		return tier
	}
	return p.Priorities[models.UrgencyThisWeek]
}

type RevenuePolicy struct {
	RequirePropertySize bool                       `yaml:"require_property_size"`
	SquareFeetPerTon    int                        `yaml:"square_feet_per_ton"`
	MinTonnage          float64                    `yaml:"min_tonnage"`
	Pricing             map[string]Price           `yaml:"pricing"`
	EstimateLowPct      int                        `yaml:"estimate_low_pct"`
	EstimateHighPct     int                        `yaml:"estimate_high_pct"`
	HotBudgetMinUSD     int                        `yaml:"hot_budget_min_usd"`
	FollowUp            map[string]FollowUpCadence `yaml:"follow_up"`
}

type Price struct {
	BaseUSD   int `yaml:"base_usd"`
	PerTonUSD int `yaml:"per_ton_usd"`
}

type FollowUpCadence struct {
	Name         string `yaml:"name"`
	OffsetsHours []int  `yaml:"offsets_hours"`
}

type FinancePolicy struct {
	DefaultTier string               `yaml:"default_tier"`
	Tiers       map[string]TermsTier `yaml:"tiers"`
}

type TermsTier struct {
	Description string  `yaml:"description"`
	NetDays     int     `yaml:"net_days"`
	LateFeePct  float64 `yaml:"late_fee_pct"`
	GraceDays   int     `yaml:"grace_days"`
}

type PeoplePolicy struct {
	Roles             []Role `yaml:"roles"`
	OnboardingMessage string `yaml:"onboarding_message"`
	CareersURL        string `yaml:"careers_url"`
}

type Role struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
	Open     bool     `yaml:"open"`
}

// RoleByID returns the configured role with the given id.
func (p PeoplePolicy) RoleByID(id string) (Role, bool) {
	for _, r := range p.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// OpenRoles lists roles currently accepting applicants.
func (p PeoplePolicy) OpenRoles() []Role {
	var open []Role
	for _, r := range p.Roles {
		if r.Open {
			open = append(open, r)
		}
	}
	return open
}

type NotificationPolicy struct {
	SalesEmail           string `yaml:"sales_email"`
	ConfirmBySMS         bool   `yaml:"confirm_by_sms"`
	PageOnCallTechnician bool   `yaml:"page_on_call_technician"`
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
