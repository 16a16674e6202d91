package policy

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"command-pipeline/internal/models"
)

// Load decodes a YAML policy file over Default() and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Policy, error) {
	if path == "" {
		p := Default()
		return p, p.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML policy bytes. Unknown keys are rejected.
func Parse(raw []byte) (*Policy, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the tables for totality and internal consistency.
func (p *Policy) Validate() error {
	var problems []string

	for _, intent := range models.AllIntents() {
		brain, ok := p.Routing[intent]
		if !ok {
			problems = append(problems, fmt.Sprintf("routing: intent %q has no entry", intent))
			continue
		}
		if !brain.Valid() {
			problems = append(problems, fmt.Sprintf("routing: intent %q maps to unknown brain %q", intent, brain))
		}
		if intent == models.IntentUnknown && brain != models.BrainNone {
			problems = append(problems, "routing: unknown intent must map to none")
		}
		if intent != models.IntentUnknown && brain == models.BrainNone {
			problems = append(problems, fmt.Sprintf("routing: intent %q maps to none", intent))
		}
	}
	for intent := range p.Routing {
		if !intent.Valid() {
			problems = append(problems, fmt.Sprintf("routing: unknown intent %q", intent))
		}
	}

	for i, rule := range p.Emergency.Rules {
		switch rule.Condition {
		case ConditionAlways, ConditionIndoorTempBelow, ConditionIndoorTempAbove:
		default:
			problems = append(problems, fmt.Sprintf("emergency.rules[%d]: unknown condition %q", i, rule.Condition))
		}
		if rule.FailureType == "" {
			problems = append(problems, fmt.Sprintf("emergency.rules[%d]: failure_type is required", i))
		}
	}

	for _, u := range []models.UrgencyLevel{models.UrgencyEmergency, models.UrgencyToday, models.UrgencyThisWeek, models.UrgencyFlexible} {
		if p.Priorities[u] == "" {
			problems = append(problems, fmt.Sprintf("priorities: urgency %q has no tier", u))
		}
	}

	if len(p.Catalog.Entries) == 0 {
		problems = append(problems, "catalog: at least one entry is required")
	}

	seenZone := map[string]bool{}
	for _, z := range p.Zones {
		if z.ID == "" {
			problems = append(problems, "zones: id is required")
		}
		if seenZone[z.ID] {
			problems = append(problems, fmt.Sprintf("zones: duplicate id %q", z.ID))
		}
		seenZone[z.ID] = true
	}

	if p.Revenue.SquareFeetPerTon <= 0 {
		problems = append(problems, "revenue.square_feet_per_ton must be positive")
	}
	if p.Revenue.EstimateLowPct <= 0 || p.Revenue.EstimateHighPct < p.Revenue.EstimateLowPct {
		problems = append(problems, "revenue: estimate_high_pct must be >= estimate_low_pct > 0")
	}

	if _, ok := p.Finance.Tiers[p.Finance.DefaultTier]; !ok {
		problems = append(problems, fmt.Sprintf("finance: default tier %q is not defined", p.Finance.DefaultTier))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid policy: %s", strings.Join(problems, "; "))
	}
	return nil
}
