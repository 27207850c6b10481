package project

import (
	"path/filepath"
	"testing"
)

func TestAddListSwitchRemove(t *testing.T) {
	reg := &Registry{}

	if err := reg.Add(Project{Name: "az", Path: "/repo/az", IssuePrefix: "az-"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.Add(Project{Name: "other", Path: "/repo/other", IssuePrefix: "oth-"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if got := reg.List(); len(got) != 2 || got[0].Name != "az" || got[1].Name != "other" {
		t.Fatalf("expected sorted [az other], got %+v", got)
	}

	cur, ok := reg.CurrentProject()
	if !ok || cur.Name != "az" {
		t.Fatalf("expected first-added project to become current, got %+v ok=%v", cur, ok)
	}

	if err := reg.Switch("other"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	cur, _ = reg.CurrentProject()
	if cur.Name != "other" {
		t.Fatalf("expected current to be other, got %+v", cur)
	}

	if err := reg.Remove("other"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if reg.Current != "" {
		t.Fatalf("expected current to clear after removing it, got %q", reg.Current)
	}
	if _, ok := reg.Get("other"); ok {
		t.Fatal("expected other to be gone")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	reg := &Registry{}
	if err := reg.Add(Project{Name: "az", Path: "/repo/az"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := reg.Add(Project{Name: "az", Path: "/other/path"})
	if _, ok := err.(*ErrDuplicate); !ok {
		t.Fatalf("expected ErrDuplicate, got %T: %v", err, err)
	}
}

func TestSwitchAndRemoveUnknownProjectFail(t *testing.T) {
	reg := &Registry{}
	if err := reg.Switch("ghost"); err == nil {
		t.Fatal("expected an error switching to an unregistered project")
	}
	if err := reg.Remove("ghost"); err == nil {
		t.Fatal("expected an error removing an unregistered project")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DirName, FileName)

	reg := &Registry{}
	if err := reg.Add(Project{Name: "az", Path: "/repo/az", IssuePrefix: "az-"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.saveTo(path); err != nil {
		t.Fatalf("saveTo: %v", err)
	}

	loaded, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if loaded.Current != "az" || len(loaded.Projects) != 1 || loaded.Projects[0].Name != "az" {
		t.Fatalf("unexpected round-trip result: %+v", loaded)
	}
}

func TestLoadMissingFileReturnsEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	reg, err := loadFrom(filepath.Join(dir, "does-not-exist.json"))
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if len(reg.Projects) != 0 || reg.Current != "" {
		t.Fatalf("expected empty registry, got %+v", reg)
	}
}
