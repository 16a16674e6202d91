// internal/workers/brains/revenue/brain.go
package revenue

import (
	"fmt"
	"math"
	"strings"

	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
	"command-pipeline/internal/workers/brains"
)

// Lead tiers.
const (
	TierHot  = "hot"
	TierWarm = "warm"
	TierCold = "cold"
)

// Brain qualifies sales leads and prices replacement quotes.
type Brain struct {
	policy *policy.Policy
}

func New(p *policy.Policy) *Brain {
	return &Brain{policy: p}
}

func (b *Brain) ID() models.BrainID { return models.BrainRevenue }

func (b *Brain) Handle(cmd models.Command) models.Decision {
	if cmd.Emergency() {
		return brains.EscalateEmergency(b.ID(), cmd, b.policy.PriorityFor(models.UrgencyEmergency))
	}

	bag := cmd.Entities
	sqft, hasSize := bag.SquareFeet()

	var missing []string
	if bag.Name() == "" {
		missing = append(missing, brains.FieldName)
	}
	if bag.Phone() == "" {
		missing = append(missing, brains.FieldPhone)
	}
	if bag.Timeline == "" {
		missing = append(missing, brains.FieldTimeline)
	}
	if b.policy.Revenue.RequirePropertySize && !hasSize {
		missing = append(missing, brains.FieldPropertySize)
	}
	if bag.SystemType == "" {
		missing = append(missing, brains.FieldSystemType)
	}
	if len(missing) > 0 {
		return brains.NeedMore("I'd be glad to put together an estimate.", nil, missing...)
	}

	tier := b.Qualify(bag)
	cadence := b.policy.Revenue.FollowUp[tier]

	lead := &models.Lead{
		Kind:      models.LeadKindSales,
		Tier:      tier,
		Source:    string(cmd.Channel),
		Timeline:  bag.Timeline,
		BudgetUSD: bag.BudgetUSD,
		Notes:     leadNotes(bag),
	}
	data := map[string]interface{}{
		"tier":          tier,
		"followUp":      cadence.Name,
		"followUpHours": cadence.OffsetsHours,
		"systemType":    bag.SystemType,
	}

	effects := brains.Effects(
		brains.ResolveIdentity(bag),
		&models.Effect{Kind: models.EffectCreateLead, Lead: lead},
	)

	var msg string
	price, priced := b.policy.Revenue.Pricing[bag.SystemType]
	switch {
	case !priced:
		data["reason"] = "no_list_price"
		msg = fmt.Sprintf("Thanks %s. A comfort advisor will follow up with pricing for that system.", firstName(bag.Name()))
	case !hasSize:
		data["reason"] = "sizing_visit_required"
		msg = fmt.Sprintf("Thanks %s. We'll need a quick sizing visit before we can price the system, and an advisor will reach out to set it up.", firstName(bag.Name()))
	default:
		quote := b.Estimate(bag.SystemType, sqft, price)
		effects = append(effects, models.Effect{Kind: models.EffectCreateQuote, Quote: quote})
		data["tonnage"] = quote.Tonnage
		data["estimateLowUsd"] = quote.EstimateLowUSD
		data["estimateHighUsd"] = quote.EstimateHighUSD
		msg = fmt.Sprintf("Thanks %s. For a home of about %d square feet, a %.1f-ton %s typically runs $%d to $%d installed. An advisor will follow up to confirm the details.",
			firstName(bag.Name()), sqft, quote.Tonnage, systemLabel(bag.SystemType), quote.EstimateLowUSD, quote.EstimateHighUSD)
	}

	if tier == TierHot && b.policy.Notifications.SalesEmail != "" {
		effects = append(effects, models.Effect{Kind: models.EffectNotify, Notification: &models.Notification{
			Recipient: b.policy.Notifications.SalesEmail,
			Channel:   models.NotifyEmail,
			Subject:   fmt.Sprintf("Hot lead: %s (%s)", bag.Name(), systemLabel(bag.SystemType)),
			Message:   fmt.Sprintf("%s at %s wants a %s, timeline %s. %s", bag.Name(), bag.Phone(), systemLabel(bag.SystemType), bag.Timeline, leadNotes(bag)),
			Context:   map[string]string{"tier": tier, "phone": bag.Phone()},
		}})
	}

	return models.Decision{Outcome: models.Completed(msg, data), Effects: effects}
}

// Qualify applies the ordered tier rules. The first rule that holds wins.
func (b *Brain) Qualify(bag models.EntityBag) string {
	rp := b.policy.Revenue
	switch {
	case bag.Urgency == models.UrgencyEmergency || bag.Urgency == models.UrgencyToday || bag.Timeline == models.TimelineImmediate:
		return TierHot
	case (bag.Timeline == models.TimelineThisWeek || bag.Timeline == models.TimelineThisMonth) &&
		((bag.BudgetUSD != nil && *bag.BudgetUSD >= rp.HotBudgetMinUSD) || bag.Financing):
		return TierHot
	case bag.Timeline == models.TimelineThisWeek || bag.Timeline == models.TimelineThisMonth || bag.Timeline == models.TimelineWithinMonths:
		return TierWarm
	}
	return TierCold
}

// Estimate sizes the system in half-ton steps and applies the price table.
func (b *Brain) Estimate(systemType string, sqft int, price policy.Price) *models.Quote {
	rp := b.policy.Revenue
	tons := math.Ceil(float64(sqft)/float64(rp.SquareFeetPerTon)*2) / 2
	if tons < rp.MinTonnage {
		tons = rp.MinTonnage
	}
	list := float64(price.BaseUSD) + float64(price.PerTonUSD)*tons
	return &models.Quote{
		SystemType:      systemType,
		SquareFeet:      sqft,
		Tonnage:         tons,
		EstimateLowUSD:  int(math.Round(list * float64(rp.EstimateLowPct) / 100)),
		EstimateHighUSD: int(math.Round(list * float64(rp.EstimateHighPct) / 100)),
	}
}

func leadNotes(bag models.EntityBag) string {
	var notes []string
	if bag.Property != nil && bag.Property.Type != "" {
		notes = append(notes, "property: "+bag.Property.Type)
	}
	if bag.SystemAgeYears != nil {
		notes = append(notes, fmt.Sprintf("current system age: %d years", *bag.SystemAgeYears))
	}
	if bag.BudgetUSD != nil {
		notes = append(notes, fmt.Sprintf("budget: $%d", *bag.BudgetUSD))
	}
	if bag.Financing {
		notes = append(notes, "asked about financing")
	}
	return strings.Join(notes, "; ")
}

func systemLabel(systemType string) string {
	switch systemType {
	case "air_conditioner":
		return "central air conditioner"
	case "mini_split":
		return "ductless mini-split"
	}
	return strings.ReplaceAll(systemType, "_", " ")
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return "for calling"
}
