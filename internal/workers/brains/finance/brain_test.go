// internal/workers/brains/finance/brain_test.go
package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
	"command-pipeline/internal/workers/brains"
)

var _ brains.Finalizer = (*Brain)(nil)

func TestHandle_BillingNeedsInvoiceNumber(t *testing.T) {
	d := New(policy.Default()).Handle(models.Command{Intent: models.IntentBillingInquiry})

	assert.Equal(t, models.StatusNeedsHuman, d.Outcome.Status)
	assert.Equal(t, []string{brains.FieldInvoiceNumber}, d.Outcome.MissingFields)
	assert.Empty(t, d.Effects)
}

func TestHandle_BillingDeclaresReadOnlyEffect(t *testing.T) {
	d := New(policy.Default()).Handle(models.Command{
		Intent:   models.IntentBillingInquiry,
		Entities: models.EntityBag{InvoiceNumber: "INV-20455"},
	})

	require.Len(t, d.Effects, 1)
	assert.Equal(t, models.EffectReadInvoiceStatus, d.Effects[0].Kind)
	assert.Equal(t, "INV-20455", d.Effects[0].Invoice.InvoiceNumber)
}

func TestFinalize(t *testing.T) {
	b := New(policy.Default())
	d := b.Handle(models.Command{
		Intent:   models.IntentBillingInquiry,
		Entities: models.EntityBag{InvoiceNumber: "INV-20455"},
	})

	t.Run("open balance", func(t *testing.T) {
		out := b.Finalize(d, models.EffectResults{Invoice: &models.InvoiceStatus{
			InvoiceNumber: "INV-20455", Status: "Overdue", Total: 480, BalanceDue: 180.5, DueDate: "2026-10-01",
		}})
		assert.Equal(t, models.StatusCompleted, out.Status)
		assert.Equal(t, "Invoice INV-20455 is overdue with a balance of $180.50 due 2026-10-01.", out.Message)
		assert.Equal(t, 180.5, out.Data["balanceDue"])
	})

	t.Run("paid", func(t *testing.T) {
		out := b.Finalize(d, models.EffectResults{Invoice: &models.InvoiceStatus{InvoiceNumber: "INV-20455", Status: "Paid", Total: 480}})
		assert.Contains(t, out.Message, "paid in full")
	})

	t.Run("not found", func(t *testing.T) {
		out := b.Finalize(d, models.EffectResults{})
		assert.Equal(t, models.StatusNeedsHuman, out.Status)
		assert.Equal(t, "invoice_not_found", out.Data["reason"])
	})
}

func TestHandle_PaymentTerms(t *testing.T) {
	b := New(policy.Default())

	tests := []struct {
		tier     string
		wantTier string
		netDays  int
	}{
		{"", "standard", 0},
		{"commercial", "commercial", 30},
		{"platinum", "standard", 0},
	}

	for _, tt := range tests {
		t.Run(tt.wantTier+"/"+tt.tier, func(t *testing.T) {
			d := b.Handle(models.Command{
				Intent:   models.IntentPaymentTermsInquiry,
				Entities: models.EntityBag{CustomerTier: tt.tier},
			})
			require.Equal(t, models.StatusCompleted, d.Outcome.Status)
			assert.Equal(t, tt.wantTier, d.Outcome.Data["tier"])
			assert.Equal(t, tt.netDays, d.Outcome.Data["netDays"])
			assert.Empty(t, d.Effects)
		})
	}
}

func TestHandle_NeverDeclaresWrites(t *testing.T) {
	b := New(policy.Default())
	for _, intent := range []models.IntentKind{models.IntentBillingInquiry, models.IntentPaymentTermsInquiry} {
		d := b.Handle(models.Command{Intent: intent, Entities: models.EntityBag{InvoiceNumber: "INV-1000"}})
		for _, e := range d.Effects {
			assert.Equal(t, models.EffectReadInvoiceStatus, e.Kind)
		}
	}
}

func TestHandle_EmergencyEscalates(t *testing.T) {
	d := New(policy.Default()).Handle(models.Command{
		Intent:   models.IntentBillingInquiry,
		Entities: models.EntityBag{Urgency: models.UrgencyEmergency, FailureType: models.FailureGasLeak},
	})
	assert.Equal(t, models.StatusNeedsHuman, d.Outcome.Status)
	assert.Equal(t, true, d.Outcome.Data["emergency"])
}
