package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-pipeline/internal/models"
)

func intPtr(v int) *int { return &v }

// ==========================
// Defaults and validation
// ==========================

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_RoutingIsTotal(t *testing.T) {
	p := Default()
	for _, intent := range models.AllIntents() {
		brain, ok := p.Routing[intent]
		require.True(t, ok, "intent %s", intent)
		if intent == models.IntentUnknown {
			assert.Equal(t, models.BrainNone, brain)
		} else {
			assert.NotEqual(t, models.BrainNone, brain, "intent %s", intent)
		}
	}
}

func TestValidate_MissingRoute(t *testing.T) {
	p := Default()
	delete(p.Routing, models.IntentPayrollInquiry)

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"payroll_inquiry" has no entry`)
}

func TestParse_OverridesAndRejectsUnknownKeys(t *testing.T) {
	p, err := Parse([]byte(`
revenue:
  require_property_size: false
  square_feet_per_ton: 600
  estimate_low_pct: 95
  estimate_high_pct: 110
`))
	require.NoError(t, err)
	assert.False(t, p.Revenue.RequirePropertySize)
	assert.Equal(t, 600, p.Revenue.SquareFeetPerTon)
	assert.Equal(t, "P1", p.Priorities[models.UrgencyEmergency])

	_, err = Parse([]byte("routing_table: {}\n"))
	require.Error(t, err)
}

func TestParse_BadRouting(t *testing.T) {
	_, err := Parse([]byte(`
routing:
  unknown: operations
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown intent must map to none")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("finance:\n  default_tier: preferred\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "preferred", p.Finance.DefaultTier)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// ==========================
// Rule evaluation
// ==========================

func TestEmergencyPolicy_Qualifies(t *testing.T) {
	e := Default().Emergency

	tests := []struct {
		name    string
		failure string
		temp    *int
		want    bool
	}{
		{"no heat at 50F", models.FailureNoHeat, intPtr(50), true},
		{"no heat at 60F", models.FailureNoHeat, intPtr(60), false},
		{"no heat at threshold", models.FailureNoHeat, intPtr(55), false},
		{"no heat without temperature", models.FailureNoHeat, nil, false},
		{"no cooling at 90F", models.FailureNoCooling, intPtr(90), true},
		{"no cooling at 80F", models.FailureNoCooling, intPtr(80), false},
		{"gas leak always", models.FailureGasLeak, nil, true},
		{"noise never", models.FailureNoise, intPtr(40), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := e.Qualifies(tt.failure, tt.temp)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestCatalog_MatchService(t *testing.T) {
	c := Default().Catalog

	assert.Equal(t, "heating-repair", c.MatchService(models.FailureNoHeat, "furnace").Code)
	assert.Equal(t, "heat-pump-repair", c.MatchService(models.FailureNoHeat, "heat_pump").Code)
	assert.Equal(t, "maintenance-tuneup", c.MatchService("maintenance", "").Code)
	assert.Equal(t, "diagnostic", c.MatchService("something-else", "").Code)
}

func TestZoneFor(t *testing.T) {
	p := Default()

	z, ok := p.ZoneFor(&models.Location{PostalCode: "75115"})
	require.True(t, ok)
	assert.Equal(t, "south-dallas", z.ID)

	z, ok = p.ZoneFor(&models.Location{City: "desoto"})
	require.True(t, ok)
	assert.Equal(t, "south-dallas", z.ID)

	_, ok = p.ZoneFor(&models.Location{PostalCode: "10001", City: "New York"})
	assert.False(t, ok)

	_, ok = p.ZoneFor(nil)
	assert.False(t, ok)
}

func TestZone_AssignTechnician(t *testing.T) {
	z, _ := Default().ZoneFor(&models.Location{PostalCode: "75115"})

	tech, ok := z.AssignTechnician(2, true)
	require.True(t, ok)
	assert.True(t, tech.OnCall)

	tech, ok = z.AssignTechnician(1, false)
	require.True(t, ok)
	assert.Equal(t, "T-101", tech.ID)

	_, ok = z.AssignTechnician(5, false)
	assert.False(t, ok)
}

func TestPriorityFor(t *testing.T) {
	p := Default()
	assert.Equal(t, "P1", p.PriorityFor(models.UrgencyEmergency))
	assert.Equal(t, "P4", p.PriorityFor(models.UrgencyFlexible))
	assert.Equal(t, "P3", p.PriorityFor(""))
}

func TestPeoplePolicy_Roles(t *testing.T) {
	people := Default().People

	role, ok := people.RoleByID("dispatcher")
	require.True(t, ok)
	assert.False(t, role.Open)

	for _, r := range people.OpenRoles() {
		assert.True(t, r.Open)
	}
	assert.Len(t, people.OpenRoles(), 2)
}
