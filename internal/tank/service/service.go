package service

import (
	"context"
	"errors"

	"github.com/ashtavinayaka/tankflow/internal/metrics"
	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/bom"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"go.uber.org/zap"
)

// Archiver keeps the original BOM file of a batch.
type Archiver interface {
	Store(ctx context.Context, tankID string, batch int, filename, path string) (string, error)
}

// Deps bundles the collaborators shared by the services. Publisher,
// Archiver, Metrics and Logger are optional.
type Deps struct {
	Repos      *repository.Repositories
	Lookup     *requirement.Lookup
	BOMOptions bom.Options
	Publisher  sse.Publisher
	Archiver   Archiver
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Services 服务集合
type Services struct {
	Tank     *TankService
	Workflow *WorkflowService
	Report   *ReportService
}

// NewServices 创建服务集合
func NewServices(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	if deps.BOMOptions.CodeColumn == "" {
		deps.BOMOptions = bom.DefaultOptions()
	}

	workflow := NewWorkflowService(deps)
	return &Services{
		Tank:     NewTankService(deps, workflow),
		Workflow: workflow,
		Report:   NewReportService(deps.Repos.Process, deps.Metrics),
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, sse.Event) {}

// storeError maps repository failures onto the application error taxonomy.
func storeError(err error, kind, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("%s %s not found", kind, id)
	}
	return apperror.Persistence(err, "failed to load %s %s", kind, id)
}
