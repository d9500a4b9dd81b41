package search

import "testing"

func TestWorkspaceFilter(t *testing.T) {
	got := workspaceFilter([]string{"ws_1", "ws_2"})
	want := `workspaceId IN ["ws_1", "ws_2"]`
	if got != want {
		t.Fatalf("workspaceFilter = %s, want %s", got, want)
	}
}

func TestIndexToResultType(t *testing.T) {
	if indexToResultType(idxTasks) != ResultTask {
		t.Error("task index mapped wrong")
	}
	if indexToResultType(idxPosts) != ResultPost {
		t.Error("post index mapped wrong")
	}
	if indexToResultType("other") != "" {
		t.Error("unknown index should map to empty type")
	}
}

func TestFirstNonBlank(t *testing.T) {
	if got := firstNonBlank("", "  ", "x", "y"); got != "x" {
		t.Fatalf("firstNonBlank = %q, want x", got)
	}
	if got := firstNonBlank("", " "); got != "" {
		t.Fatalf("firstNonBlank = %q, want empty", got)
	}
}
