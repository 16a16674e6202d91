package policy

import "command-pipeline/internal/models"

// Default returns the compiled-in rule tables. A policy file loaded with Load
// is decoded on top of these.
func Default() *Policy {
	return &Policy{
		Routing: map[models.IntentKind]models.BrainID{
			models.IntentServiceRequest:        models.BrainOperations,
			models.IntentScheduleAppointment:   models.BrainOperations,
			models.IntentRescheduleAppointment: models.BrainOperations,
			models.IntentCancelAppointment:     models.BrainOperations,
			models.IntentQuoteRequest:          models.BrainRevenue,
			models.IntentBillingInquiry:        models.BrainFinance,
			models.IntentPaymentTermsInquiry:   models.BrainFinance,
			models.IntentHiringInquiry:         models.BrainPeople,
			models.IntentOnboardingInquiry:     models.BrainPeople,
			models.IntentPayrollInquiry:        models.BrainPeople,
			models.IntentUnknown:               models.BrainNone,
		},
		Emergency: EmergencyPolicy{
			Rules: []EmergencyRule{
				{FailureType: models.FailureGasLeak, Condition: ConditionAlways, Reason: "possible gas leak"},
				{FailureType: models.FailureCarbonMonoxide, Condition: ConditionAlways, Reason: "carbon monoxide alarm"},
				{FailureType: models.FailureElectricalHazard, Condition: ConditionAlways, Reason: "electrical hazard"},
				{FailureType: models.FailureNoHeat, Condition: ConditionIndoorTempBelow, ThresholdF: 55, Reason: "no heat with low indoor temperature"},
				{FailureType: models.FailureNoCooling, Condition: ConditionIndoorTempAbove, ThresholdF: 85, Reason: "no cooling with high indoor temperature"},
			},
		},
		Priorities: map[models.UrgencyLevel]string{
			models.UrgencyEmergency: "P1",
			models.UrgencyToday:     "P2",
			models.UrgencyThisWeek:  "P3",
			models.UrgencyFlexible:  "P4",
		},
		Catalog: CatalogPolicy{
			DefaultCode: "diagnostic",
			Entries: []ServiceEntry{
				{Code: "gas-safety", Name: "Gas leak response", Match: []string{models.FailureGasLeak, models.FailureCarbonMonoxide}, DurationMinutes: 90, SkillLevel: 3},
				{Code: "electrical-safety", Name: "Electrical hazard response", Match: []string{models.FailureElectricalHazard}, DurationMinutes: 90, SkillLevel: 3},
				{Code: "heat-pump-repair", Name: "Heat pump repair", Match: []string{models.FailureNoHeat, models.FailureNoCooling}, SystemTypes: []string{"heat_pump"}, DurationMinutes: 120, SkillLevel: 2},
				{Code: "heating-repair", Name: "Heating repair", Match: []string{models.FailureNoHeat}, DurationMinutes: 120, SkillLevel: 2},
				{Code: "cooling-repair", Name: "Cooling repair", Match: []string{models.FailureNoCooling}, DurationMinutes: 120, SkillLevel: 2},
				{Code: "leak-repair", Name: "Water leak repair", Match: []string{models.FailureWaterLeak}, DurationMinutes: 90, SkillLevel: 2},
				{Code: "noise-diagnosis", Name: "Noise diagnosis", Match: []string{models.FailureNoise}, DurationMinutes: 60, SkillLevel: 1},
				{Code: "maintenance-tuneup", Name: "Seasonal tune-up", Match: []string{"maintenance"}, DurationMinutes: 60, SkillLevel: 1},
				{Code: "diagnostic", Name: "Diagnostic visit", Match: []string{models.FailureGeneral}, DurationMinutes: 60, SkillLevel: 1},
			},
		},
		Zones: []Zone{
			{
				ID:          "south-dallas",
				Name:        "South Dallas County",
				PostalCodes: []string{"75115", "75116", "75134", "75137", "75146", "75172"},
				Cities:      []string{"DeSoto", "Duncanville", "Lancaster", "Cedar Hill", "Wilmer"},
				Technicians: []Technician{
					{ID: "T-101", Name: "Maria Lopez", Phone: "+12145550101", SkillLevel: 3, OnCall: true},
					{ID: "T-102", Name: "James Carter", Phone: "+12145550102", SkillLevel: 2},
					{ID: "T-103", Name: "Dev Patel", Phone: "+12145550103", SkillLevel: 1},
				},
			},
			{
				ID:          "north-dallas",
				Name:        "North Dallas",
				PostalCodes: []string{"75001", "75240", "75248", "75252", "75287"},
				Cities:      []string{"Addison", "Dallas", "Richardson", "Carrollton"},
				Technicians: []Technician{
					{ID: "T-201", Name: "Alex Kim", Phone: "+12145550201", SkillLevel: 2, OnCall: true},
					{ID: "T-202", Name: "Sam Rivera", Phone: "+12145550202", SkillLevel: 3},
				},
			},
		},
		Revenue: RevenuePolicy{
			RequirePropertySize: true,
			SquareFeetPerTon:    500,
			MinTonnage:          1.5,
			Pricing: map[string]Price{
				"air_conditioner": {BaseUSD: 2500, PerTonUSD: 1200},
				"heat_pump":       {BaseUSD: 3000, PerTonUSD: 1500},
				"furnace":         {BaseUSD: 2800, PerTonUSD: 900},
				"boiler":          {BaseUSD: 4500, PerTonUSD: 1100},
				"mini_split":      {BaseUSD: 2000, PerTonUSD: 1400},
				"water_heater":    {BaseUSD: 1400, PerTonUSD: 0},
			},
			EstimateLowPct:  90,
			EstimateHighPct: 115,
			HotBudgetMinUSD: 5000,
			FollowUp: map[string]FollowUpCadence{
				"hot":  {Name: "same_day", OffsetsHours: []int{0, 24, 72}},
				"warm": {Name: "weekly", OffsetsHours: []int{24, 72, 168}},
				"cold": {Name: "nurture", OffsetsHours: []int{168, 720}},
			},
		},
		Finance: FinancePolicy{
			DefaultTier: "standard",
			Tiers: map[string]TermsTier{
				"standard":   {Description: "Residential", NetDays: 0, LateFeePct: 1.5, GraceDays: 30},
				"preferred":  {Description: "Maintenance plan member", NetDays: 15, LateFeePct: 1.0, GraceDays: 30},
				"commercial": {Description: "Commercial account", NetDays: 30, LateFeePct: 1.5, GraceDays: 15},
			},
		},
		People: PeoplePolicy{
			Roles: []Role{
				{ID: "hvac_technician", Title: "HVAC Technician", Keywords: []string{"technician", "tech", "hvac tech", "service tech"}, Open: true},
				{ID: "apprentice", Title: "HVAC Apprentice", Keywords: []string{"apprentice", "helper", "trainee"}, Open: true},
				{ID: "dispatcher", Title: "Dispatcher", Keywords: []string{"dispatcher", "dispatch"}, Open: false},
				{ID: "sales_advisor", Title: "Comfort Sales Advisor", Keywords: []string{"sales", "comfort advisor"}, Open: false},
			},
			OnboardingMessage: "New team members start with a two-day orientation on Monday at 7:30 AM at the main office. Bring photo ID and your driver's license; your onboarding coordinator will email the paperwork beforehand.",
			CareersURL:        "https://example.com/careers",
		},
		Notifications: NotificationPolicy{
			SalesEmail:           "sales@example.com",
			ConfirmBySMS:         true,
			PageOnCallTechnician: true,
		},
	}
}
