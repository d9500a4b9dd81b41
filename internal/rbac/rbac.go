package rbac

type Role string
type Action string

const (
	RoleViewer   Role = "viewer"
	RoleExecutor Role = "executor"
	RoleManager  Role = "manager"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionPost   Action = "post"
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleManager:
		return true
	case RoleExecutor:
		return action == ActionRead || action == ActionWrite || action == ActionPost
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

var rank = map[Role]int{RoleViewer: 1, RoleExecutor: 2, RoleManager: 3}

// Strongest returns the more permissive of two roles. Effective
// permission across overlapping scopes is the strongest one held.
func Strongest(a, b Role) Role {
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleExecutor, RoleManager:
		return Role(role)
	default:
		return RoleViewer
	}
}
