package migration

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// State of a migration
type State string

const (
	StatePending  State = "pending"
	StateExecuted State = "executed"
)

// VersionLayout is the timestamp layout used as a migration version
const VersionLayout = "20060102150405"

var filenamePattern = regexp.MustCompile(`^([0-9]+)_(.*)\.(up|down)\.sql$`)

// Status describes one migration and whether it has been executed
type Status struct {
	Name         string
	Filename     string
	Version      uint
	TimeCreated  time.Time
	State        State
	TimeExecuted time.Time
}

// Pending reports whether the migration has not been executed yet
func (s Status) Pending() bool {
	return s.State != StateExecuted
}

type historyRecord struct {
	ID         uint      `gorm:"primaryKey"`
	Version    uint      `gorm:"uniqueIndex;not null"`
	Name       string    `gorm:"size:255;not null"`
	ExecutedAt time.Time `gorm:"not null"`
}

func (m *Migrator) history(ctx context.Context) *gorm.DB {
	return m.db.DB.WithContext(ctx).Table(m.cfg.Table)
}

func (m *Migrator) record(ctx context.Context, s Status) error {
	rec := historyRecord{Version: s.Version, Name: s.Name, ExecutedAt: s.TimeExecuted.UTC()}
	if err := m.history(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record migration %d: %w", s.Version, err)
	}
	return nil
}

func (m *Migrator) forget(ctx context.Context, version uint) error {
	if err := m.history(ctx).Where("version = ?", version).Delete(&historyRecord{}).Error; err != nil {
		return fmt.Errorf("failed to remove migration %d from history: %w", version, err)
	}
	return nil
}

// Migrations lists every migration in version order together with its execution state
func (m *Migrator) Migrations(ctx context.Context) ([]Status, error) {
	if !m.IsConfigured() {
		return nil, ErrNotConfigured
	}

	known, err := m.catalog()
	if err != nil {
		return nil, err
	}

	var records []historyRecord
	if err := m.history(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}
	executed := make(map[uint]time.Time, len(records))
	for _, r := range records {
		executed[r.Version] = r.ExecutedAt
	}

	out := make([]Status, 0, len(known))
	for _, s := range known {
		if at, ok := executed[s.Version]; ok {
			s.State = StateExecuted
			s.TimeExecuted = at.UTC()
		}
		out = append(out, s)
	}
	return out, nil
}

type catalog []Status

func (c catalog) status(version uint) Status {
	for _, s := range c {
		if s.Version == version {
			return s
		}
	}
	return Status{Version: version, Name: strconv.FormatUint(uint64(version), 10), State: StatePending}
}

// catalog reads the up migrations of the migrations directory, ignoring nested directories.
func (m *Migrator) catalog() (catalog, error) {
	names, err := m.files.GetFiles(m.cfg.Directory, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	var out catalog
	for _, filename := range names {
		rel := m.files.RelativePath(filename, m.cfg.Directory)
		if path.Dir(rel) != "." {
			continue
		}
		match := filenamePattern.FindStringSubmatch(rel)
		if match == nil || match[3] != "up" {
			continue
		}
		version, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Status{
			Name:        match[2],
			Filename:    rel,
			Version:     uint(version),
			TimeCreated: createdAt(match[1]),
			State:       StatePending,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func createdAt(version string) time.Time {
	t, err := time.ParseInLocation(VersionLayout, version, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
