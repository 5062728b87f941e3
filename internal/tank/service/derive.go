package service

import (
	"strings"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/bom"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/google/uuid"
)

// Diagnostic reasons
const (
	ReasonNoRequirement = "no requirement entry for code"
	ReasonNoCodeColumn  = "header row has no code column"
)

// Diagnostic records a BOM row that did not become a process.
type Diagnostic struct {
	Row    int    `json:"row"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

// LineItems is a forward-only sequence of candidate BOM rows; *bom.Rows satisfies it.
type LineItems interface {
	Next() bool
	Item() bom.LineItem
	Err() error
}

// DeriveProcesses joins line items against the requirements table in file
// order. Matched items become open processes numbered "{batch}.{k}" with k
// counting from 1; unmatched items are skipped and reported.
func DeriveProcesses(tank *entity.Tank, batch int, items LineItems, lookup *requirement.Lookup, now time.Time) ([]*entity.Process, []Diagnostic, error) {
	processes := make([]*entity.Process, 0)
	var diagnostics []Diagnostic

	for items.Next() {
		item := items.Item()
		req, ok := lookup.Find(item.Code)
		if !ok {
			diagnostics = append(diagnostics, Diagnostic{Row: item.Row, Code: item.Code, Reason: ReasonNoRequirement})
			continue
		}

		position := len(processes) + 1
		processes = append(processes, &entity.Process{
			ID:             uuid.New().String()[:32],
			TankID:         tank.ID,
			TankName:       tank.DisplayName(),
			ProcessName:    processName(item, req),
			SerialNo:       entity.FormatSerial(batch, position),
			Batch:          batch,
			Position:       position,
			SFGCode:        item.Code,
			Workers:        req.WorkersRequired,
			TimeToComplete: req.TimeRequiredHrs,
			Status:         entity.StatusOpen,
			Progress:       0,
			AddedAt:        now,
			UpdatedAt:      now,
		})
	}
	if err := items.Err(); err != nil {
		return nil, nil, err
	}
	return processes, diagnostics, nil
}

func processName(item bom.LineItem, req entity.Requirement) string {
	if name := strings.TrimSpace(item.Description); name != "" {
		return name
	}
	if name := strings.TrimSpace(req.ProcessName); name != "" {
		return name
	}
	return item.Code
}
