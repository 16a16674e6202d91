// internal/workers/brains/finance/brain.go
package finance

import (
	"fmt"
	"strings"

	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
	"command-pipeline/internal/workers/brains"
)

// Brain answers billing and payment-terms questions. It only ever declares
// read-only effects.
type Brain struct {
	policy *policy.Policy
}

func New(p *policy.Policy) *Brain {
	return &Brain{policy: p}
}

func (b *Brain) ID() models.BrainID { return models.BrainFinance }

func (b *Brain) Handle(cmd models.Command) models.Decision {
	if cmd.Emergency() {
		return brains.EscalateEmergency(b.ID(), cmd, b.policy.PriorityFor(models.UrgencyEmergency))
	}
	switch cmd.Intent {
	case models.IntentBillingInquiry:
		return b.invoiceStatus(cmd)
	case models.IntentPaymentTermsInquiry:
		return b.paymentTerms(cmd)
	}
	return models.Decision{Outcome: models.NeedsHuman("I'll have our billing office follow up with you.", nil)}
}

func (b *Brain) invoiceStatus(cmd models.Command) models.Decision {
	number := cmd.Entities.InvoiceNumber
	if number == "" {
		return brains.NeedMore("I can look up that bill.", nil, brains.FieldInvoiceNumber)
	}
	return models.Decision{
		Outcome: models.Completed(fmt.Sprintf("Looking up invoice %s.", number), map[string]interface{}{"invoiceNumber": number}),
		Effects: []models.Effect{{Kind: models.EffectReadInvoiceStatus, Invoice: &models.InvoiceQuery{InvoiceNumber: number}}},
	}
}

// Finalize renders the invoice the gateway read back.
func (b *Brain) Finalize(decision models.Decision, results models.EffectResults) models.BrainOutcome {
	if len(decision.Effects) == 0 || decision.Effects[0].Kind != models.EffectReadInvoiceStatus {
		return decision.Outcome
	}
	number := decision.Effects[0].Invoice.InvoiceNumber
	inv := results.Invoice
	if inv == nil {
		return models.NeedsHuman(
			fmt.Sprintf("I couldn't find invoice %s. I'll have our billing office check it for you.", number),
			map[string]interface{}{"invoiceNumber": number, "reason": "invoice_not_found"},
		)
	}

	data := map[string]interface{}{
		"invoiceNumber": inv.InvoiceNumber,
		"status":        inv.Status,
		"total":         inv.Total,
		"balanceDue":    inv.BalanceDue,
	}
	if inv.DueDate != "" {
		data["dueDate"] = inv.DueDate
	}

	var msg string
	if inv.BalanceDue <= 0 {
		msg = fmt.Sprintf("Invoice %s for $%.2f is paid in full.", inv.InvoiceNumber, inv.Total)
	} else {
		msg = fmt.Sprintf("Invoice %s is %s with a balance of $%.2f", inv.InvoiceNumber, strings.ToLower(inv.Status), inv.BalanceDue)
		if inv.DueDate != "" {
			msg += " due " + inv.DueDate
		}
		msg += "."
	}
	return models.Completed(msg, data)
}

func (b *Brain) paymentTerms(cmd models.Command) models.Decision {
	name := cmd.Entities.CustomerTier
	tier, ok := b.policy.Finance.Tiers[name]
	if !ok {
		name = b.policy.Finance.DefaultTier
		tier = b.policy.Finance.Tiers[name]
	}

	due := "Payment is due when the work is completed"
	if tier.NetDays > 0 {
		due = fmt.Sprintf("Payment is due within %d days of the invoice date", tier.NetDays)
	}
	msg := fmt.Sprintf("For %s accounts: %s. A late fee of %.1f%% per month applies to balances more than %d days past due.",
		strings.ToLower(tier.Description), due, tier.LateFeePct, tier.GraceDays)

	return models.Decision{Outcome: models.Completed(msg, map[string]interface{}{
		"tier":       name,
		"netDays":    tier.NetDays,
		"lateFeePct": tier.LateFeePct,
		"graceDays":  tier.GraceDays,
	})}
}
