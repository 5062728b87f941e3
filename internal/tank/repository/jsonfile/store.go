// Package jsonfile keeps tanks and processes in a single JSON document
// {"tanks": [...], "processes": [...]}.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
)

type document struct {
	Tanks     []entity.Tank    `json:"tanks"`
	Processes []entity.Process `json:"processes"`
}

// DB serialises read-modify-write cycles on the file. Every call re-reads
// the file, so edits made while the server runs are picked up.
type DB struct {
	mu   sync.Mutex
	path string
}

// Open creates the file (and its directory) when missing and checks it parses.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db := &DB{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := db.write(&document{}); err != nil {
			return nil, err
		}
	}
	if _, err := db.read(); err != nil {
		return nil, err
	}
	return db, nil
}

func (d *DB) Path() string {
	return d.path
}

func (d *DB) read() (*document, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}
	doc := &document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.path, err)
	}
	return doc, nil
}

// write replaces the file through a rename so readers never see half a document.
func (d *DB) write(doc *document) error {
	if doc.Tanks == nil {
		doc.Tanks = []entity.Tank{}
	}
	if doc.Processes == nil {
		doc.Processes = []entity.Process{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".tankflow-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("replace %s: %w", d.path, err)
	}
	return nil
}

func (d *DB) view(fn func(doc *document) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.read()
	if err != nil {
		return err
	}
	return fn(doc)
}

func (d *DB) update(fn func(doc *document) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return d.write(doc)
}

// NewRepositories builds file-backed repositories sharing one DB.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Tank:    &TankRepository{db: db},
		Process: &ProcessRepository{db: db},
	}
}

type TankRepository struct {
	db *DB
}

func (r *TankRepository) CreateWithProcesses(ctx context.Context, tank *entity.Tank, processes []*entity.Process) error {
	return r.db.update(func(doc *document) error {
		for _, t := range doc.Tanks {
			if t.ID == tank.ID {
				return fmt.Errorf("tank %s already exists", tank.ID)
			}
		}
		if err := appendProcesses(doc, processes); err != nil {
			return err
		}
		doc.Tanks = append(doc.Tanks, *tank)
		return nil
	})
}

func (r *TankRepository) FindByID(ctx context.Context, id string) (*entity.Tank, error) {
	var found *entity.Tank
	err := r.db.view(func(doc *document) error {
		for i := range doc.Tanks {
			if doc.Tanks[i].ID == id {
				t := doc.Tanks[i]
				found = &t
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *TankRepository) List(ctx context.Context) ([]entity.Tank, error) {
	var tanks []entity.Tank
	err := r.db.view(func(doc *document) error {
		tanks = append(tanks, doc.Tanks...)
		return nil
	})
	return tanks, err
}

func (r *TankRepository) UpdateStatus(ctx context.Context, id string, status entity.Status) error {
	return r.db.update(func(doc *document) error {
		for i := range doc.Tanks {
			if doc.Tanks[i].ID == id {
				doc.Tanks[i].Status = status
				doc.Tanks[i].UpdatedAt = time.Now()
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

type ProcessRepository struct {
	db *DB
}

func (r *ProcessRepository) CreateBatch(ctx context.Context, processes []*entity.Process) error {
	if len(processes) == 0 {
		return nil
	}
	return r.db.update(func(doc *document) error {
		return appendProcesses(doc, processes)
	})
}

func (r *ProcessRepository) FindByID(ctx context.Context, id string) (*entity.Process, error) {
	return r.findOne(func(p *entity.Process) bool { return p.ID == id })
}

func (r *ProcessRepository) FindByTankAndSerial(ctx context.Context, tankID, serialNo string) (*entity.Process, error) {
	return r.findOne(func(p *entity.Process) bool { return p.TankID == tankID && p.SerialNo == serialNo })
}

func (r *ProcessRepository) findOne(match func(p *entity.Process) bool) (*entity.Process, error) {
	var found *entity.Process
	err := r.db.view(func(doc *document) error {
		for i := range doc.Processes {
			if match(&doc.Processes[i]) {
				p := doc.Processes[i]
				found = &p
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *ProcessRepository) List(ctx context.Context, filter repository.ProcessFilter) ([]entity.Process, error) {
	processes := []entity.Process{}
	err := r.db.view(func(doc *document) error {
		for i := range doc.Processes {
			if filter.Match(&doc.Processes[i]) {
				processes = append(processes, doc.Processes[i])
			}
		}
		return nil
	})
	repository.SortProcesses(processes)
	return processes, err
}

func (r *ProcessRepository) Save(ctx context.Context, process *entity.Process) error {
	return r.SaveAll(ctx, []*entity.Process{process})
}

func (r *ProcessRepository) SaveAll(ctx context.Context, processes []*entity.Process) error {
	return r.db.update(func(doc *document) error {
		index := make(map[string]int, len(doc.Processes))
		for i := range doc.Processes {
			index[doc.Processes[i].ID] = i
		}
		now := time.Now()
		for _, p := range processes {
			i, ok := index[p.ID]
			if !ok {
				return repository.ErrNotFound
			}
			p.AddedAt = doc.Processes[i].AddedAt
			p.UpdatedAt = now
			doc.Processes[i] = *p
		}
		return nil
	})
}

func appendProcesses(doc *document, processes []*entity.Process) error {
	serials := make(map[string]bool, len(doc.Processes))
	for _, p := range doc.Processes {
		serials[p.TankID+"/"+p.SerialNo] = true
	}
	for _, p := range processes {
		key := p.TankID + "/" + p.SerialNo
		if serials[key] {
			return fmt.Errorf("duplicate serial %s for tank %s", p.SerialNo, p.TankID)
		}
		serials[key] = true
		doc.Processes = append(doc.Processes, *p)
	}
	return nil
}
