package controls

import "testing"

const sampleDiff = `diff --git a/app/config.py b/app/config.py
--- a/app/config.py
+++ b/app/config.py
@@ -10,4 +10,5 @@ class Config:
 import os
-OLD = 1
+NEW = 2
 x = 1
+y = 2
@@ -40,2 +41,3 @@
 z = 3
+w = 4`

func TestAddedLines(t *testing.T) {
	lines := AddedLines(sampleDiff)
	want := []AddedLine{
		{Index: 7, Number: 11, Text: "NEW = 2"},
		{Index: 9, Number: 13, Text: "y = 2"},
		{Index: 12, Number: 42, Text: "w = 4"},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestAddedLines_NoHunkHeader(t *testing.T) {
	lines := AddedLines("+a\n b\n+c")
	if len(lines) != 2 || lines[0].Number != 0 || lines[1].Index != 3 {
		t.Errorf("unexpected lines %+v", lines)
	}
}

func TestHunkStart(t *testing.T) {
	tests := map[string]int{
		"@@ -1,3 +5,4 @@":      5,
		"@@ -1 +7 @@ func x()": 7,
		"@@ -1,3 +0,0 @@":      0,
		"@@ malformed @@":      0,
	}
	for header, want := range tests {
		if got := hunkStart(header); got != want {
			t.Errorf("hunkStart(%q) = %d, want %d", header, got, want)
		}
	}
}

func TestNewContent(t *testing.T) {
	got := NewContent(sampleDiff)
	want := "import os\nNEW = 2\nx = 1\ny = 2\nz = 3\nw = 4\n"
	if got != want {
		t.Errorf("NewContent() = %q, want %q", got, want)
	}

	raw := `{"packages": {}}`
	if NewContent(raw) != raw {
		t.Error("content without hunks must be returned unchanged")
	}
}
