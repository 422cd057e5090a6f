package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks filenames, version uniqueness and goose markers of every .sql file in dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := checkMarkers(name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func checkMarkers(name, txt string) error {
	up := strings.Index(txt, upMarker)
	down := strings.Index(txt, downMarker)
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing %q", name, upMarker)
	case down < 0:
		return fmt.Errorf("migration %q missing %q", name, downMarker)
	case down < up:
		return fmt.Errorf("migration %q has %q before %q", name, downMarker, upMarker)
	}
	return nil
}
