package model

import "testing"

func TestLimitsForPlan(t *testing.T) {
	tests := []struct {
		plan         PlanID
		normalLimit  int
		personaLimit int
		canSave      bool
	}{
		{PlanFree, 3, 0, false},
		{PlanStandard, 20, 1, true},
		{PlanPremium, UnlimitedLimit, 5, true},
	}

	for _, tt := range tests {
		limits := LimitsForPlan(tt.plan)
		if limits.NormalAnalysisLimit != tt.normalLimit {
			t.Errorf("%s: NormalAnalysisLimit = %d, want %d", tt.plan, limits.NormalAnalysisLimit, tt.normalLimit)
		}
		if limits.PersonaAnalysisLimit != tt.personaLimit {
			t.Errorf("%s: PersonaAnalysisLimit = %d, want %d", tt.plan, limits.PersonaAnalysisLimit, tt.personaLimit)
		}
		if limits.CanSaveAnalysis != tt.canSave {
			t.Errorf("%s: CanSaveAnalysis = %v, want %v", tt.plan, limits.CanSaveAnalysis, tt.canSave)
		}
	}
}

func TestLimitsForPlan_UnknownPlanTreatedAsFree(t *testing.T) {
	limits := LimitsForPlan(PlanID("enterprise"))

	if limits.NormalAnalysisLimit != 3 {
		t.Errorf("NormalAnalysisLimit = %d, want free plan limit 3", limits.NormalAnalysisLimit)
	}
	if limits.CanSaveAnalysis {
		t.Error("unknown plan must not grant save capability")
	}
}

func TestIsPaidPlan(t *testing.T) {
	if IsPaidPlan(PlanFree) {
		t.Error("free plan must not be paid")
	}
	if !IsPaidPlan(PlanStandard) || !IsPaidPlan(PlanPremium) {
		t.Error("standard and premium are paid plans")
	}
	if IsPaidPlan(PlanID("enterprise")) {
		t.Error("unknown plan must not be paid")
	}
}

func TestValidPlan(t *testing.T) {
	if !ValidPlan(PlanFree) || !ValidPlan(PlanStandard) || !ValidPlan(PlanPremium) {
		t.Error("free, standard and premium are defined plans")
	}
	if ValidPlan(PlanID("enterprise")) {
		t.Error("unknown plan must not be valid")
	}
}

func TestValidBillingCycle(t *testing.T) {
	if !ValidBillingCycle(BillingCycleMonthly) || !ValidBillingCycle(BillingCycleYearly) {
		t.Error("monthly and yearly are valid cycles")
	}
	if ValidBillingCycle(BillingCycle("weekly")) {
		t.Error("weekly is not a valid cycle")
	}
}
