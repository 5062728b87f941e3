// Package requirement holds the reference table mapping SFG codes to the
// workforce and hours a fabrication step needs.
package requirement

import (
	"fmt"
	"strings"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Lookup is read-only after construction and safe for concurrent use.
type Lookup struct {
	entries    []entity.Requirement
	index      map[string]int
	duplicates []string
}

// New indexes entries by lower-cased code. The first entry for a code wins.
func New(entries []entity.Requirement) *Lookup {
	l := &Lookup{
		entries: make([]entity.Requirement, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		key := normalize(e.SFGCode)
		if _, ok := l.index[key]; ok {
			l.duplicates = append(l.duplicates, e.SFGCode)
			continue
		}
		l.index[key] = len(l.entries)
		l.entries = append(l.entries, e)
	}
	return l
}

var maxHours = decimal.New(1, 8)

// Load reads a {"tasks": [...]} document. JSON and YAML are accepted, picked by extension.
func Load(path string) (*Lookup, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read requirements %s: %w", path, err)
	}

	var entries []entity.Requirement
	if err := v.UnmarshalKey("tasks", &entries); err != nil {
		return nil, fmt.Errorf("decode requirements %s: %w", path, err)
	}

	for i, e := range entries {
		if strings.TrimSpace(e.SFGCode) == "" {
			return nil, fmt.Errorf("requirements %s: task %d has no sfg_code", path, i)
		}
		if e.WorkersRequired < 0 || e.TimeRequiredHrs < 0 {
			return nil, fmt.Errorf("requirements %s: task %s has negative values", path, e.SFGCode)
		}
		// processes store hours as numeric(10,2)
		hours := decimal.NewFromFloat(e.TimeRequiredHrs)
		if hours.Exponent() < -2 || !hours.LessThan(maxHours) {
			return nil, fmt.Errorf("requirements %s: task %s time_required_hrs must be below 100000000 with at most 2 decimals", path, e.SFGCode)
		}
	}

	return New(entries), nil
}

// Find matches code case-insensitively.
func (l *Lookup) Find(code string) (entity.Requirement, bool) {
	i, ok := l.index[normalize(code)]
	if !ok {
		return entity.Requirement{}, false
	}
	return l.entries[i], true
}

// Entries returns a copy of the deduplicated table in file order.
func (l *Lookup) Entries() []entity.Requirement {
	out := make([]entity.Requirement, len(l.entries))
	copy(out, l.entries)
	return out
}

// Duplicates lists codes that were shadowed by an earlier entry.
func (l *Lookup) Duplicates() []string {
	return l.duplicates
}

func (l *Lookup) Len() int {
	return len(l.entries)
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
