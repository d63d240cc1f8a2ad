package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeUniverseFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write fixture file: %v", err)
	}
	return path
}

func TestStaticFileUniverse_ActiveSymbols_SkipsBlankAndCommentLines(t *testing.T) {
	path := writeUniverseFile(t, "btcusdt\n\n# a comment\nethusdt\n  \nsolusdt\n")

	u := NewStaticFileUniverse(path)
	symbols, err := u.ActiveSymbols(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(symbols) != len(want) {
		t.Fatalf("symbols = %v, want %v", symbols, want)
	}
	for i, s := range want {
		if symbols[i] != s {
			t.Errorf("symbols[%d] = %q, want %q", i, symbols[i], s)
		}
	}
}

func TestStaticFileUniverse_ActiveSymbols_MissingFileErrors(t *testing.T) {
	u := NewStaticFileUniverse(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if _, err := u.ActiveSymbols(context.Background()); err == nil {
		t.Fatal("expected an error for a missing universe file")
	}
}
