package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer write", role: RoleViewer, action: ActionWrite, allow: false},
		{name: "viewer post", role: RoleViewer, action: ActionPost, allow: false},
		{name: "executor write", role: RoleExecutor, action: ActionWrite, allow: true},
		{name: "executor post", role: RoleExecutor, action: ActionPost, allow: true},
		{name: "executor manage", role: RoleExecutor, action: ActionManage, allow: false},
		{name: "manager manage", role: RoleManager, action: ActionManage, allow: true},
		{name: "unknown role read", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalizeDefaultsToViewer(t *testing.T) {
	if got := Normalize(""); got != RoleViewer {
		t.Fatalf("Normalize(\"\") = %q, want viewer", got)
	}
	if got := Normalize("admin"); got != RoleViewer {
		t.Fatalf("Normalize(\"admin\") = %q, want viewer", got)
	}
	if got := Normalize("manager"); got != RoleManager {
		t.Fatalf("Normalize(\"manager\") = %q, want manager", got)
	}
}
