package tree

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustGet(t *testing.T, m *Memory, p string) string {
	t.Helper()

	v, ok, err := m.Get(p)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", p, err)
	}
	if !ok {
		t.Fatalf("Get(%q): not found", p)
	}
	return string(v)
}

func TestClean(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"/", "", false},
		{"/users/u1/", "users/u1", false},
		{"users//u1", "", true},
		{"users/../u1", "", true},
		{"./users", "", true},
	}
	for _, tt := range tests {
		got, err := Clean(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Clean(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Clean(%q) error %v is not ErrInvalidPath", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	m := NewMemory()
	doc := `{"t1":{"taskId":"t1","title":"Buy milk","taskCompleted":false,"dueDateTime":1714636800000,"categoryIds":["a","b"]}}`
	if err := m.Set("users/u1/tasks", json.RawMessage(doc)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got := mustGet(t, m, "users/u1/tasks/t1/title")
	if got != `"Buy milk"` {
		t.Errorf("title = %s", got)
	}

	got = mustGet(t, m, "users/u1/tasks/t1/categoryIds")
	if got != `["a","b"]` {
		t.Errorf("categoryIds = %s, want array", got)
	}

	got = mustGet(t, m, "users/u1/tasks/t1/dueDateTime")
	if got != "1714636800000" {
		t.Errorf("dueDateTime lost precision: %s", got)
	}

	got = mustGet(t, m, "users")
	var decoded map[string]map[string]map[string]map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("root value is not nested objects: %v (%s)", err, got)
	}
	if decoded["u1"]["tasks"]["t1"]["taskCompleted"] != false {
		t.Errorf("unexpected nested value %s", got)
	}
}

func TestSetReplacesSubtree(t *testing.T) {
	m := NewMemory()
	if err := m.Set("users/u1/tasks", json.RawMessage(`{"a":{"title":"A"},"b":{"title":"B"}}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Set("users/u1/tasks", json.RawMessage(`{"b":{"title":"B2"}}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok, _ := m.Get("users/u1/tasks/a"); ok {
		t.Error("task a survived a full replace")
	}
	if got := mustGet(t, m, "users/u1/tasks/b/title"); got != `"B2"` {
		t.Errorf("b title = %s", got)
	}
}

func TestSetOverScalarAncestor(t *testing.T) {
	m := NewMemory()
	if err := m.Set("users/u1", json.RawMessage(`"placeholder"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Set("users/u1/userDetails/name", json.RawMessage(`"Ada"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := mustGet(t, m, "users/u1"); got != `{"userDetails":{"name":"Ada"}}` {
		t.Errorf("users/u1 = %s", got)
	}
}

func TestEmptyValuesDelete(t *testing.T) {
	for _, empty := range []string{`null`, `{}`, `[]`} {
		m := NewMemory()
		if err := m.Set("users/u1/categories", json.RawMessage(`[{"categoryId":"c1"}]`)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := m.Set("users/u1/categories", json.RawMessage(empty)); err != nil {
			t.Fatalf("Set(%s) failed: %v", empty, err)
		}
		if _, ok, _ := m.Get("users/u1/categories"); ok {
			t.Errorf("Set(%s) left data behind", empty)
		}
		if m.Len() != 0 {
			t.Errorf("Set(%s) leaves = %d", empty, m.Len())
		}
	}
}

func TestUpdateMergesChildren(t *testing.T) {
	m := NewMemory()
	if err := m.Set("users/u1", json.RawMessage(`{"userDetails":{"name":"Ada"},"categories":[{"categoryId":"c1"}]}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Update("users/u1", json.RawMessage(`{"userDetails":{"name":"Grace","occupation":"Admiral"}}`)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := mustGet(t, m, "users/u1/userDetails"); got != `{"name":"Grace","occupation":"Admiral"}` {
		t.Errorf("userDetails = %s", got)
	}
	if _, ok, _ := m.Get("users/u1/categories/0/categoryId"); !ok {
		t.Error("Update removed a sibling")
	}

	if err := m.Update("users/u1", json.RawMessage(`"scalar"`)); err == nil {
		t.Error("expected error updating with a scalar")
	}
}

func TestDelete(t *testing.T) {
	m := NewMemory()
	if err := m.Set("users", json.RawMessage(`{"u1":{"x":1},"u10":{"x":2}}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Delete("users/u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := m.Get("users/u1"); ok {
		t.Error("users/u1 still present")
	}
	// Prefix siblings must survive.
	if got := mustGet(t, m, "users/u10/x"); got != "2" {
		t.Errorf("users/u10/x = %s", got)
	}
}

func TestSparseIndexesStayObjects(t *testing.T) {
	leaves := []Leaf{
		{Path: "list/0", Value: json.RawMessage(`"a"`)},
		{Path: "list/2", Value: json.RawMessage(`"c"`)},
	}
	got, ok, err := Build("list", leaves)
	if err != nil || !ok {
		t.Fatalf("Build failed: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"0":"a","2":"c"}` {
		t.Errorf("Build = %s", got)
	}
}

func TestChildRange(t *testing.T) {
	lo, hi := ChildRange("users/u1")
	for _, p := range []string{"users/u1/tasks", "users/u1/z"} {
		if !(p >= lo && p < hi) {
			t.Errorf("%q not in [%q, %q)", p, lo, hi)
		}
	}
	for _, p := range []string{"users/u1", "users/u10/tasks", "users/u1.x"} {
		if p >= lo && p < hi {
			t.Errorf("%q unexpectedly in [%q, %q)", p, lo, hi)
		}
	}
}

func TestAncestors(t *testing.T) {
	got := Ancestors("users/u1/tasks")
	want := []string{"users", "users/u1"}
	if len(got) != len(want) {
		t.Fatalf("Ancestors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ancestors[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
