// internal/workers/brains/people/brain.go
package people

import (
	"fmt"
	"strings"

	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
	"command-pipeline/internal/workers/brains"
)

// Brain answers hiring, onboarding and payroll questions. Its only write is
// applicant intake for roles the policy lists as open.
type Brain struct {
	policy *policy.Policy
}

func New(p *policy.Policy) *Brain {
	return &Brain{policy: p}
}

func (b *Brain) ID() models.BrainID { return models.BrainPeople }

func (b *Brain) Handle(cmd models.Command) models.Decision {
	if cmd.Emergency() {
		return brains.EscalateEmergency(b.ID(), cmd, b.policy.PriorityFor(models.UrgencyEmergency))
	}
	switch cmd.Intent {
	case models.IntentHiringInquiry:
		return b.hiring(cmd)
	case models.IntentOnboardingInquiry:
		return models.Decision{Outcome: models.Completed(b.policy.People.OnboardingMessage, nil)}
	case models.IntentPayrollInquiry:
		return b.payroll(cmd)
	}
	return models.Decision{Outcome: models.NeedsHuman("I'll pass this to our HR team.", nil)}
}

func (b *Brain) hiring(cmd models.Command) models.Decision {
	people := b.policy.People
	open := people.OpenRoles()
	openIDs := make([]string, 0, len(open))
	titles := make([]string, 0, len(open))
	for _, r := range open {
		openIDs = append(openIDs, r.ID)
		titles = append(titles, r.Title)
	}
	listing := "We don't have any open positions right now."
	if len(titles) > 0 {
		listing = "We're currently hiring for: " + strings.Join(titles, ", ") + "."
	}
	if people.CareersURL != "" {
		listing += " You can see details at " + people.CareersURL + "."
	}

	bag := cmd.Entities
	role, known := people.RoleByID(bag.Role)
	if !known {
		return models.Decision{Outcome: models.Completed(listing, map[string]interface{}{"openRoles": openIDs})}
	}
	if !role.Open {
		return models.Decision{Outcome: models.Completed(
			fmt.Sprintf("We're not hiring for %s at the moment. %s", role.Title, listing),
			map[string]interface{}{"role": role.ID, "roleOpen": false, "openRoles": openIDs},
		)}
	}

	var missing []string
	if bag.Name() == "" {
		missing = append(missing, brains.FieldName)
	}
	if bag.Phone() == "" {
		missing = append(missing, brains.FieldPhone)
	}
	if len(missing) > 0 {
		return brains.NeedMore(
			fmt.Sprintf("We are hiring for %s and I can start your application.", role.Title),
			map[string]interface{}{"role": role.ID, "roleOpen": true},
			missing...,
		)
	}

	lead := &models.Lead{
		Kind:   models.LeadKindApplicant,
		Source: string(cmd.Channel),
		Role:   role.ID,
		Notes:  "applied for " + role.Title,
	}
	return models.Decision{
		Outcome: models.Completed(
			fmt.Sprintf("Thanks %s. I've sent your application for %s to our hiring team and they'll call you at the number you gave.", bag.Name(), role.Title),
			map[string]interface{}{"role": role.ID, "roleOpen": true},
		),
		Effects: brains.Effects(
			brains.ResolveIdentity(bag),
			&models.Effect{Kind: models.EffectCreateLead, Lead: lead},
		),
	}
}

// payroll never answers from here; pay questions go to HR with the
// employee's id attached.
func (b *Brain) payroll(cmd models.Command) models.Decision {
	if cmd.Entities.EmployeeID == "" {
		return brains.NeedMore("I can route your payroll question to HR.", nil, brains.FieldEmployeeID)
	}
	return models.Decision{Outcome: models.NeedsHuman(
		"Payroll questions are handled by our HR team. I'm passing your question along with your employee ID so they can look into it.",
		map[string]interface{}{"employeeId": cmd.Entities.EmployeeID, "reason": "hr_review"},
	)}
}
