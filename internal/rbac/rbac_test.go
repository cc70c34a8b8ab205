package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "applicant own plan", role: RoleApplicant, action: ActionWorkOwnPlan, allow: true},
		{name: "applicant view any", role: RoleApplicant, action: ActionViewAnyPlan, allow: false},
		{name: "applicant force export", role: RoleApplicant, action: ActionForceExport, allow: false},
		{name: "advisor view any", role: RoleAdvisor, action: ActionViewAnyPlan, allow: true},
		{name: "advisor force export", role: RoleAdvisor, action: ActionForceExport, allow: true},
		{name: "advisor manage accounts", role: RoleAdvisor, action: ActionManageAccounts, allow: false},
		{name: "admin manage accounts", role: RoleAdmin, action: ActionManageAccounts, allow: true},
		{name: "unknown role", role: Role("guest"), action: ActionWorkOwnPlan, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalizeDefaultsToApplicant(t *testing.T) {
	if got := Normalize("superuser"); got != RoleApplicant {
		t.Fatalf("Normalize(superuser) = %q, want %q", got, RoleApplicant)
	}
	if got := Normalize("advisor"); got != RoleAdvisor {
		t.Fatalf("Normalize(advisor) = %q, want %q", got, RoleAdvisor)
	}
}
