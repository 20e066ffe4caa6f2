package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Migration is one versioned pair of SQL scripts, named NNNNNN_name.{up,down}.sql.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var embedded = sync.OnceValues(func() ([]Migration, error) {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	return LoadMigrations(sub)
})

// Migrations returns the migrations compiled into the binary, oldest first.
func Migrations() ([]Migration, error) {
	return embedded()
}

// LoadMigrations reads every *.up.sql in the root of fsys with its matching
// down script. A missing down script, a malformed name or a repeated version
// is an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(ups))
	out := make([]Migration, 0, len(ups))
	for _, name := range ups {
		base := strings.TrimSuffix(path.Base(name), ".up.sql")
		rawVersion, label, ok := strings.Cut(base, "_")
		if !ok || label == "" {
			return nil, fmt.Errorf("migration %s: want NNNNNN_name.up.sql", name)
		}
		version, err := strconv.Atoi(rawVersion)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: bad version %q", name, rawVersion)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, prev, name)
		}
		seen[version] = name

		up, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, base+".down.sql")
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", base, err)
		}

		out = append(out, Migration{
			Version:    version,
			Name:       label,
			UpScript:   string(up),
			DownScript: string(down),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func findMigration(all []Migration, version int) (Migration, bool) {
	for _, m := range all {
		if m.Version == version {
			return m, true
		}
	}
	return Migration{}, false
}
