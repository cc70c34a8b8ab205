package rbac

type Role string
type Action string

const (
	RoleApplicant Role = "applicant"
	RoleAdvisor   Role = "advisor"
	RoleAdmin     Role = "admin"
)

const (
	ActionWorkOwnPlan    Action = "work_own_plan"
	ActionViewAnyPlan    Action = "view_any_plan"
	ActionForceExport    Action = "force_export"
	ActionManageAccounts Action = "manage_accounts"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAdvisor:
		return action == ActionWorkOwnPlan || action == ActionViewAnyPlan || action == ActionForceExport
	case RoleApplicant:
		return action == ActionWorkOwnPlan
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleApplicant, RoleAdvisor, RoleAdmin:
		return Role(role)
	default:
		return RoleApplicant
	}
}
