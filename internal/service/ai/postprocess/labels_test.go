package postprocess

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadLabels_Default(t *testing.T) {
	labels, err := LoadLabels("")
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if len(labels) != 80 {
		t.Errorf("expected 80 COCO labels, got %d", len(labels))
	}
	if labels.Name(0) != "person" {
		t.Errorf("expected person, got %s", labels.Name(0))
	}
	if labels.Name(80) != "class_80" {
		t.Errorf("expected fallback name, got %s", labels.Name(80))
	}
}

func TestLoadLabels_Formats(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		expected []string
	}{
		{"text", "classes.txt", "crack\n\n missing_bolt \nspall\n", []string{"crack", "missing_bolt", "spall"}},
		{"yaml list", "data.yaml", "path: rails\nnames: [crack, missing_bolt]\n", []string{"crack", "missing_bolt"}},
		{"yaml map", "data.yml", "names:\n  1: missing_bolt\n  0: crack\n", []string{"crack", "missing_bolt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := LoadLabels(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadLabels failed: %v", err)
			}
			if len(labels) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, labels)
			}
			for i, name := range tt.expected {
				if labels.Name(i) != name {
					t.Errorf("class %d: expected %s, got %s", i, name, labels.Name(i))
				}
			}
		})
	}
}

func TestLoadLabels_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"empty text", "classes.txt", "\n\n"},
		{"yaml without names", "data.yaml", "path: rails\n"},
		{"yaml scalar names", "data.yaml", "names: crack\n"},
		{"broken yaml", "data.yaml", "names: [crack\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadLabels(writeFile(t, tt.file, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultSSDLabels(t *testing.T) {
	labels := DefaultSSDLabels()
	if len(labels) != 91 {
		t.Fatalf("expected 91 slots, got %d", len(labels))
	}

	tests := []struct {
		id       int
		expected string
	}{
		{0, "background"},
		{1, "person"},
		{12, "class_12"},
		{13, "stop sign"},
		{16, "bird"},
		{17, "cat"},
		{18, "dog"},
		{44, "bottle"},
		{90, "toothbrush"},
		{91, "class_91"},
	}
	for _, tt := range tests {
		if got := labels.Name(tt.id); got != tt.expected {
			t.Errorf("class %d: expected %q, got %q", tt.id, tt.expected, got)
		}
	}
}
