package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// UniverseProvider is the external-collaborator contract for the
// instrument-universe selector (§1, §2 item 11; SPEC_FULL.md §4.11):
// the core depends only on the active symbol list, not on how it is
// produced.
type UniverseProvider interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
}

// StaticFileUniverse is a minimal config-file-backed UniverseProvider so
// the module is runnable standalone without an external selector
// service (SPEC_FULL.md §4.11). One symbol per line; blank lines and
// lines starting with "#" are ignored.
type StaticFileUniverse struct {
	path string
}

// NewStaticFileUniverse builds a provider reading symbols from path.
func NewStaticFileUniverse(path string) *StaticFileUniverse {
	return &StaticFileUniverse{path: path}
}

// ActiveSymbols reads and returns the current symbol list.
func (u *StaticFileUniverse) ActiveSymbols(ctx context.Context) ([]string, error) {
	f, err := os.Open(u.path)
	if err != nil {
		return nil, fmt.Errorf("read universe file %s: %w", u.path, err)
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan universe file %s: %w", u.path, err)
	}
	return symbols, nil
}
