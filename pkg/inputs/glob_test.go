package inputs

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// captureDir holds a batch of capture files and one directory named like a
// trace, the way an export folder from a bench session looks.
func captureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"crash-2.log", "crash-1.log", "hci.log", "hci.cfa", "HCI2.CFA", "spi.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "old.log"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestExpandGlobs(t *testing.T) {
	dir := captureDir(t)
	abs := func(names ...string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = filepath.Join(dir, n)
		}
		return out
	}

	tests := []struct {
		name     string
		patterns []string
		skip     []string
		want     []string
	}{
		{
			name:     "explicit file",
			patterns: abs("spi.csv"),
			want:     abs("spi.csv"),
		},
		{
			name:     "glob sorted without directories",
			patterns: abs("*.log"),
			want:     abs("crash-1.log", "crash-2.log", "hci.log"),
		},
		{
			name:     "no match passes pattern through",
			patterns: abs("*.missing"),
			want:     abs("*.missing"),
		},
		{
			name:     "duplicates collapse",
			patterns: abs("hci.log", "hci.*", "hci.log"),
			want:     abs("hci.cfa", "hci.log"),
		},
		{
			name:     "skip extension ignores case",
			patterns: abs("*"),
			skip:     []string{".cfa"},
			want:     abs("crash-1.log", "crash-2.log", "hci.log", "spi.csv"),
		},
		{
			name:     "explicit path survives skip list",
			patterns: abs("hci.cfa"),
			skip:     []string{".cfa"},
			want:     abs("hci.cfa"),
		},
		{
			name:     "empty input",
			patterns: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandGlobs(tt.patterns, tt.skip...)
			if err != nil {
				t.Fatalf("ExpandGlobs() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ExpandGlobs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandGlobs_InvalidPattern(t *testing.T) {
	if _, err := ExpandGlobs([]string{"[invalid"}); err == nil {
		t.Error("ExpandGlobs() expected error for invalid pattern")
	}
}
