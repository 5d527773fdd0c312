package schema

import "testing"

func TestCategoryDefaults(t *testing.T) {
	c := NewCategory("Work", "ic_work", "blue")
	if c.IconIdentifier != "ic_work" || c.ColorIdentifier != "blue" {
		t.Errorf("known keys were replaced: %+v", c)
	}

	c = NewCategory("Misc", "ic_unknown", "neon")
	if c.IconIdentifier != DefaultIcon {
		t.Errorf("IconIdentifier = %q, want %q", c.IconIdentifier, DefaultIcon)
	}
	if c.ColorIdentifier != DefaultColor {
		t.Errorf("ColorIdentifier = %q, want %q", c.ColorIdentifier, DefaultColor)
	}
	if Color("neon") != Color(DefaultColor) {
		t.Error("unknown color did not fall back to default pair")
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{ID: "c", Name: "Work"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Category{ID: "c", Name: " "}).Validate(); err == nil {
		t.Error("expected error for blank name")
	}
	if err := (Category{Name: "Work"}).Validate(); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestPickDefaultAvatar(t *testing.T) {
	for i := range DefaultAvatars {
		got := PickDefaultAvatar(func(n int) int {
			if n != len(DefaultAvatars) {
				t.Fatalf("intn called with %d, want %d", n, len(DefaultAvatars))
			}
			return i
		})
		if !IsDefaultAvatar(got) {
			t.Errorf("PickDefaultAvatar returned %q which is not a default", got)
		}
	}
	if IsDefaultAvatar("/tmp/me.png") {
		t.Error("local path reported as default avatar")
	}
}

func TestUserValidate(t *testing.T) {
	if err := (User{ID: "u", Email: "a@b.c"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (User{ID: "u"}).Validate(); err == nil {
		t.Error("expected error for missing email")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("notes"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
