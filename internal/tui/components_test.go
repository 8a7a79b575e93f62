package tui_test

import (
	"strings"
	"testing"

	"github.com/waabox/builddeck/internal/audit"
	"github.com/waabox/builddeck/internal/domain"
	"github.com/waabox/builddeck/internal/filetree"
	"github.com/waabox/builddeck/internal/tui"
)

func TestInputModel_InsertAndBackspace(t *testing.T) {
	m := tui.NewInputModel("placeholder")
	m = m.Insert([]rune("abc"))
	m = m.Backspace()
	if m.Value() != "ab" {
		t.Errorf("expected 'ab', got '%s'", m.Value())
	}
	if m.Reset().Value() != "" {
		t.Error("expected empty value after reset")
	}
}

func TestInputModel_InsertDoesNotAliasPrevious(t *testing.T) {
	base := tui.NewInputModel("").Insert([]rune("ab"))
	left := base.Insert([]rune("x"))
	right := base.Insert([]rune("y"))
	if left.Value() != "abx" || right.Value() != "aby" {
		t.Errorf("expected independent values, got '%s' and '%s'", left.Value(), right.Value())
	}
}

func treeFixture() []*filetree.Node {
	roots, _ := filetree.Build([]domain.Artifact{
		{RelativePath: "contracts/Token.sol"},
		{RelativePath: "contracts/deploy/Deploy.s.sol"},
		{RelativePath: "audit-report.md"},
	})
	return roots
}

func TestFileTreeModel_StartsExpanded(t *testing.T) {
	m := tui.NewFileTreeModel(treeFixture())
	view := m.View(nil)
	for _, want := range []string{"contracts/", "Token.sol", "deploy/", "Deploy.s.sol", "audit-report.md"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected '%s' in view, got:\n%s", want, view)
		}
	}
}

func TestFileTreeModel_ToggleCollapsesFolder(t *testing.T) {
	m := tui.NewFileTreeModel(treeFixture())
	m = m.Toggle()
	view := m.View(nil)
	if strings.Contains(view, "Token.sol") {
		t.Errorf("expected contracts/ to be collapsed, got:\n%s", view)
	}
	m = m.MoveDown()
	n, ok := m.Selected()
	if !ok || n.Path != "audit-report.md" {
		t.Errorf("expected audit-report.md under cursor, got %+v", n)
	}
}

func TestFileTreeModel_ToggleOnFileIsNoop(t *testing.T) {
	m := tui.NewFileTreeModel(treeFixture()).MoveDown()
	before := m.View(nil)
	if after := m.Toggle().View(nil); after != before {
		t.Errorf("expected no change toggling a file, got:\n%s", after)
	}
}

func TestFileTreeModel_MarksFailedFiles(t *testing.T) {
	m := tui.NewFileTreeModel(treeFixture())
	view := m.View(map[string]error{"audit-report.md": domain.ErrUnauthorized})
	if !strings.Contains(view, "failed to load") {
		t.Errorf("expected failure marker, got:\n%s", view)
	}
}

func TestFindingListModel_ShowsSelectedDetail(t *testing.T) {
	m := tui.NewFindingListModel([]audit.Finding{
		{Severity: audit.SeverityHigh, Title: "[High] Unchecked call", Line: 12},
		{Severity: audit.SeverityLow, Title: "Floating pragma", Recommendation: "Pin the compiler version."},
	})
	if !strings.Contains(m.View(), "Line 12") {
		t.Errorf("expected line of first finding, got:\n%s", m.View())
	}
	m = m.MoveDown()
	if !strings.Contains(m.View(), "Pin the compiler version.") {
		t.Errorf("expected recommendation of second finding, got:\n%s", m.View())
	}
}

func TestStoreListModel_LikeThenConfirm(t *testing.T) {
	m := tui.NewStoreListModel([]domain.StoreApp{{ID: "a", Title: "Token", Likes: 1}})
	m = m.Like("a")
	likes, pending := m.Likes("a")
	if likes != 2 || !pending {
		t.Errorf("expected 2 pending likes, got %d pending=%v", likes, pending)
	}
	m = m.ConfirmLike("a", 5)
	likes, pending = m.Likes("a")
	if likes != 5 || pending {
		t.Errorf("expected 5 confirmed likes, got %d pending=%v", likes, pending)
	}
}

func TestStoreListModel_LikeDoesNotMutateOriginal(t *testing.T) {
	original := tui.NewStoreListModel([]domain.StoreApp{{ID: "a", Likes: 1}})
	_ = original.Like("a")
	if likes, _ := original.Likes("a"); likes != 1 {
		t.Errorf("expected original to keep 1 like, got %d", likes)
	}
}
