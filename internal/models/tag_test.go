package models

import "testing"

func TestNormalizeTagName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sunset", "sunset"},
		{"  Sunset  ", "sunset"},
		{"Sunset   Shots", "sunset shots"},
		{"SUNSET\tshots", "sunset shots"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTagName(tt.in); got != tt.want {
			t.Errorf("NormalizeTagName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSameName(t *testing.T) {
	if !SameName("Sunset", "  sunset ") {
		t.Error("SameName() = false for equivalent names")
	}
	if SameName("sunset", "sunrise") {
		t.Error("SameName() = true for different names")
	}
}

func TestRecordTagHelpers(t *testing.T) {
	rec := ImageRecord{Tags: []Tag{{ID: "t1"}, {ID: "t2"}}}

	ids := rec.TagIDs()
	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("TagIDs() = %v, want [t1 t2]", ids)
	}
	if !rec.HasTag("t2") {
		t.Error("HasTag(t2) = false")
	}
	if rec.HasTag("t3") {
		t.Error("HasTag(t3) = true")
	}
}
