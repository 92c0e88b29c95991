package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	dialects  = []string{"postgres", "sqlite"}
)

// ValidateDir checks filenames and goose headers in every dialect directory under
// root, and that each dialect carries the same set of migration versions.
func ValidateDir(root string) error {
	if root == "" {
		return fmt.Errorf("dir is required")
	}

	versions := map[string][]string{}
	for _, dialect := range dialects {
		found, err := validateDialectDir(filepath.Join(root, dialect))
		if err != nil {
			return err
		}
		versions[dialect] = found
	}

	want := strings.Join(versions[dialects[0]], ",")
	for _, dialect := range dialects[1:] {
		if got := strings.Join(versions[dialect], ","); got != want {
			return fmt.Errorf("migration versions differ between %s [%s] and %s [%s]", dialects[0], want, dialect, got)
		}
	}
	return nil
}

func validateDialectDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		full := filepath.Join(dir, name)
		b, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", full, err)
		}

		txt := string(b)
		if !strings.Contains(txt, "-- +goose Up") {
			return nil, fmt.Errorf("migration %q missing \"-- +goose Up\"", full)
		}
		if !strings.Contains(txt, "-- +goose Down") {
			return nil, fmt.Errorf("migration %q missing \"-- +goose Down\"", full)
		}
	}

	out := make([]string, 0, len(seen))
	for version := range seen {
		out = append(out, version)
	}
	sort.Strings(out)
	return out, nil
}
