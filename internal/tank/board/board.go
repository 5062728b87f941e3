// Package board keeps a client-side copy of the status columns and commits
// drags against the API, rolling the card back when the server refuses.
package board

import (
	"context"
	"sync"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"go.uber.org/zap"
)

// Board 看板本地快照
type Board struct {
	client Client
	logger *zap.Logger

	mu    sync.RWMutex
	cards map[string]*entity.Process
	order []string

	onTankComplete func(tankID string)
}

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the board logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Board) { b.logger = logger }
}

// OnTankComplete is called after a drag to completed leaves every process of the tank completed.
func OnTankComplete(fn func(tankID string)) Option {
	return func(b *Board) { b.onTankComplete = fn }
}

// New creates an empty board. Call Load to fill it.
func New(client Client, opts ...Option) *Board {
	b := &Board{
		client: client,
		logger: zap.NewNop(),
		cards:  make(map[string]*entity.Process),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load replaces the snapshot with the server's process list.
func (b *Board) Load(ctx context.Context) error {
	processes, err := b.client.Processes(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cards = make(map[string]*entity.Process, len(processes))
	b.order = b.order[:0]
	for i := range processes {
		p := processes[i]
		b.cards[p.ID] = &p
		b.order = append(b.order, p.ID)
	}
	return nil
}

// Card returns a copy of one card.
func (b *Board) Card(processID string) (entity.Process, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.cards[processID]
	if !ok {
		return entity.Process{}, false
	}
	return *p, true
}

// Column returns the cards currently shown under status, in load order.
func (b *Board) Column(status entity.Status) []entity.Process {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []entity.Process{}
	for _, id := range b.order {
		if p := b.cards[id]; p.Status == status {
			out = append(out, *p)
		}
	}
	return out
}

// RequestStatusChange moves a card to target. The server's current status is
// read first, the card is moved locally, and the PATCH is sent; if the PATCH
// fails the card goes back to the status observed by the read.
func (b *Board) RequestStatusChange(ctx context.Context, processID string, target entity.Status) (*entity.Process, error) {
	if _, ok := entity.ParseStatus(string(target)); !ok {
		return nil, apperror.Validation("invalid status %q", target)
	}
	card, ok := b.Card(processID)
	if !ok {
		return nil, apperror.NotFound("process %s is not on the board", processID)
	}

	observed, err := b.client.Check(ctx, card.TankID, card.SerialNo)
	if err != nil {
		return nil, err
	}
	previous := card
	previous.Status = observed.Status
	previous.Progress = observed.Progress

	b.update(processID, func(p *entity.Process) {
		p.SetStatus(target)
	})

	result, err := b.client.SetStatus(ctx, processID, target)
	if err != nil {
		b.restore(previous)
		b.logger.Warn("status change rejected, card restored",
			zap.String("process_id", processID),
			zap.String("serial_no", card.SerialNo),
			zap.String("restored", string(previous.Status)),
			zap.Error(err))
		return nil, err
	}

	updated := previous
	updated.SetStatus(target)
	if result.Process != nil {
		updated = *result.Process
	}
	b.restore(updated)

	if target == entity.StatusCompleted {
		b.checkCompletion(ctx, updated.TankID)
	}
	return &updated, nil
}

func (b *Board) checkCompletion(ctx context.Context, tankID string) {
	completion, err := b.client.CompletionStatus(ctx, tankID)
	if err != nil {
		b.logger.Warn("completion check failed", zap.String("tank_id", tankID), zap.Error(err))
		return
	}
	if completion.IsComplete && b.onTankComplete != nil {
		b.onTankComplete(tankID)
	}
}

func (b *Board) update(processID string, fn func(p *entity.Process)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.cards[processID]; ok {
		fn(p)
	}
}

func (b *Board) restore(p entity.Process) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cards[p.ID]; !ok {
		b.order = append(b.order, p.ID)
	}
	b.cards[p.ID] = &p
}
