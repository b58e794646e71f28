package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateOutputPath(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	for _, d := range []string{safeDir, unsafeDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	link := filepath.Join(safeDir, "elsewhere")
	if err := os.Symlink(unsafeDir, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safeDir, "heading.png"), false},
		{"nested new dirs", filepath.Join(safeDir, "a", "b", "heading.png"), false},
		{"dir itself", safeDir, false},
		{"dot dot escape", filepath.Join(safeDir, "..", "unsafe", "heading.png"), true},
		{"sibling", filepath.Join(unsafeDir, "heading.png"), true},
		{"through symlink", filepath.Join(link, "heading.png"), true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPath(tt.path, safeDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputPathSentinel(t *testing.T) {
	err := ValidateOutputPath("/etc/heading.png", t.TempDir())
	if !errors.Is(err, ErrOutsideAllowedDirs) {
		t.Errorf("got %v, want ErrOutsideAllowedDirs", err)
	}
}

func TestValidateOutputPathDefaults(t *testing.T) {
	if err := ValidateOutputPath(filepath.Join(t.TempDir(), "heading.png")); err != nil {
		t.Errorf("temp dir should be allowed by default: %v", err)
	}
	if err := ValidateOutputPath("heading.png"); err != nil {
		t.Errorf("working directory should be allowed by default: %v", err)
	}
}

func TestValidateOutputPathMultipleDirs(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	if err := ValidateOutputPath(filepath.Join(b, "x.png"), a, b); err != nil {
		t.Errorf("second dir should match: %v", err)
	}
}
