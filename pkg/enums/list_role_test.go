package enums

import "testing"

func TestListRoleHierarchy(t *testing.T) {
	tests := []struct {
		role ListRole
		min  ListRole
		want bool
	}{
		{ListRoleOwner, ListRoleOwner, true},
		{ListRoleOwner, ListRoleEditor, true},
		{ListRoleOwner, ListRoleViewer, true},
		{ListRoleEditor, ListRoleOwner, false},
		{ListRoleEditor, ListRoleEditor, true},
		{ListRoleEditor, ListRoleViewer, true},
		{ListRoleViewer, ListRoleEditor, false},
		{ListRoleViewer, ListRoleViewer, true},
		{ListRoleNone, ListRoleViewer, false},
		{ListRole("admin"), ListRoleViewer, false},
	}
	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Fatalf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestListRoleAssignable(t *testing.T) {
	if ListRoleOwner.IsAssignable() {
		t.Fatalf("owner must not be assignable")
	}
	if !ListRoleEditor.IsAssignable() || !ListRoleViewer.IsAssignable() {
		t.Fatalf("editor and viewer must be assignable")
	}
}

func TestParseListRole(t *testing.T) {
	if role, err := ParseListRole("editor"); err != nil || role != ListRoleEditor {
		t.Fatalf("expected editor, got %q err=%v", role, err)
	}
	if _, err := ParseListRole("superuser"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if ListRoleNone.String() != "none" {
		t.Fatalf("expected none string")
	}
}

func TestParseLanguageDefaultsToEnglish(t *testing.T) {
	if lang, err := ParseLanguage(""); err != nil || lang != LanguageEnglish {
		t.Fatalf("expected en default, got %q err=%v", lang, err)
	}
	if _, err := ParseLanguage("fr"); err == nil {
		t.Fatalf("expected error for unsupported language")
	}
}
