package service

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/metrics"
	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/bom"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateTankInput is the form half of a tank submission.
type CreateTankInput struct {
	TankType     string `json:"tankType" form:"tankType" validate:"required,notblank,max=128"`
	Capacity     string `json:"capacity" form:"capacity" validate:"required,capacity"`
	DeliveryDate string `json:"deliveryDate" form:"deliveryDate" validate:"required,delivery_date"`
	ClientName   string `json:"clientName" form:"clientName" validate:"required,notblank,max=128"`
}

// normalized returns a copy with surrounding whitespace removed.
func (in *CreateTankInput) normalized() CreateTankInput {
	return CreateTankInput{
		TankType:     strings.TrimSpace(in.TankType),
		Capacity:     strings.TrimSpace(in.Capacity),
		DeliveryDate: strings.TrimSpace(in.DeliveryDate),
		ClientName:   strings.TrimSpace(in.ClientName),
	}
}

// BOMFile is an uploaded BOM already written to local disk.
type BOMFile struct {
	Filename string
	Path     string
}

// SubmissionResult is returned for a new tank and for an appended batch.
type SubmissionResult struct {
	Tank        *entity.Tank      `json:"tank"`
	Processes   []*entity.Process `json:"processes"`
	Diagnostics []Diagnostic      `json:"diagnostics"`
	Batch       int               `json:"batch"`
	ArchiveKey  string            `json:"archiveKey,omitempty"`
}

// TankSummary aggregates the processes of one tank.
type TankSummary struct {
	ProcessCount    int                   `json:"processCount"`
	TotalHours      float64               `json:"totalHours"`
	WorkerHours     float64               `json:"workerHours"`
	AverageProgress float64               `json:"averageProgress"`
	StatusCounts    map[entity.Status]int `json:"statusCounts"`
	IsComplete      bool                  `json:"isComplete"`
}

// TankDetail is a tank with its processes.
type TankDetail struct {
	Tank      *entity.Tank     `json:"tank"`
	Processes []entity.Process `json:"processes"`
	Summary   TankSummary      `json:"summary"`
}

type TankService struct {
	tankRepo    repository.TankRepository
	processRepo repository.ProcessRepository
	lookup      *requirement.Lookup
	bomOpts     bom.Options
	publisher   sse.Publisher
	archiver    Archiver
	workflow    *WorkflowService
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewTankService(deps Deps, workflow *WorkflowService) *TankService {
	return &TankService{
		tankRepo:    deps.Repos.Tank,
		processRepo: deps.Repos.Process,
		lookup:      deps.Lookup,
		bomOpts:     deps.BOMOptions,
		publisher:   deps.Publisher,
		archiver:    deps.Archiver,
		workflow:    workflow,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// CreateTank 由BOM创建储罐及第一批工序
// A BOM with no matching rows still creates the tank; callers check len(Processes).
func (s *TankService) CreateTank(ctx context.Context, input *CreateTankInput, file BOMFile) (*SubmissionResult, error) {
	in := input.normalized()
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	capacity, _ := decimal.NewFromString(in.Capacity)
	deliveryDate, _ := parseDeliveryDate(in.DeliveryDate)

	now := time.Now()
	tank := &entity.Tank{
		ID:           uuid.New().String()[:32],
		TankType:     in.TankType,
		Capacity:     capacity,
		DeliveryDate: deliveryDate,
		ClientName:   in.ClientName,
		Status:       entity.StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	const batch = 1
	processes, diagnostics, err := s.derive(tank, batch, file, now)
	if err != nil {
		return nil, err
	}

	if err := s.tankRepo.CreateWithProcesses(ctx, tank, processes); err != nil {
		s.logger.Error("failed to store tank",
			zap.String("tank_id", tank.ID),
			zap.Int("processes", len(processes)),
			zap.Error(err))
		return nil, apperror.Persistence(err, "failed to save tank")
	}

	s.metrics.RecordTankCreated(len(processes), len(diagnostics))
	s.logger.Info("tank created",
		zap.String("tank_id", tank.ID),
		zap.String("tank", tank.DisplayName()),
		zap.Int("processes", len(processes)),
		zap.Int("unmatched", len(diagnostics)))
	s.publisher.Publish(ctx, sse.TankCreated(tank, len(processes), "created"))

	return &SubmissionResult{
		Tank:        tank,
		Processes:   processes,
		Diagnostics: diagnostics,
		Batch:       batch,
		ArchiveKey:  s.archive(ctx, tank.ID, batch, file),
	}, nil
}

// AppendBOM 向已有储罐追加一批工序，批次号为现有最大批次+1
func (s *TankService) AppendBOM(ctx context.Context, tankID string, file BOMFile) (*SubmissionResult, error) {
	tank, err := s.tankRepo.FindByID(ctx, tankID)
	if err != nil {
		return nil, storeError(err, "tank", tankID)
	}
	existing, err := s.processRepo.List(ctx, repository.ProcessFilter{TankID: tankID})
	if err != nil {
		return nil, apperror.Persistence(err, "failed to list processes")
	}
	batch := 1
	for _, p := range existing {
		if p.Batch >= batch {
			batch = p.Batch + 1
		}
	}

	now := time.Now()
	processes, diagnostics, err := s.derive(tank, batch, file, now)
	if err != nil {
		return nil, err
	}
	if err := s.processRepo.CreateBatch(ctx, processes); err != nil {
		s.logger.Error("failed to store batch",
			zap.String("tank_id", tankID),
			zap.Int("batch", batch),
			zap.Error(err))
		return nil, apperror.Persistence(err, "failed to save processes")
	}

	s.metrics.RecordDerivation(len(processes), len(diagnostics))
	s.logger.Info("bom appended",
		zap.String("tank_id", tankID),
		zap.Int("batch", batch),
		zap.Int("processes", len(processes)),
		zap.Int("unmatched", len(diagnostics)))

	if len(processes) > 0 {
		status, _, err := s.workflow.refreshTankStatus(ctx, tankID)
		if err != nil {
			return nil, err
		}
		tank.Status = status
	}
	s.publisher.Publish(ctx, sse.TankCreated(tank, len(processes), "bom_appended"))

	return &SubmissionResult{
		Tank:        tank,
		Processes:   processes,
		Diagnostics: diagnostics,
		Batch:       batch,
		ArchiveKey:  s.archive(ctx, tank.ID, batch, file),
	}, nil
}

// derive streams the BOM file through the parser into processes.
func (s *TankService) derive(tank *entity.Tank, batch int, file BOMFile, now time.Time) ([]*entity.Process, []Diagnostic, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, nil, apperror.Parse(err, "unable to open uploaded BOM")
	}
	defer f.Close()

	rows, err := bom.Open(f, file.Filename, s.bomOpts)
	if err != nil {
		s.metrics.RecordParseFailure()
		return nil, nil, err
	}
	defer rows.Close()

	processes, diagnostics, err := DeriveProcesses(tank, batch, rows, s.lookup, now)
	if err != nil {
		s.metrics.RecordParseFailure()
		return nil, nil, err
	}
	if !rows.HasCodeColumn() && len(rows.Header()) > 0 {
		diagnostics = append(diagnostics, Diagnostic{Row: 1, Code: s.bomOpts.CodeColumn, Reason: ReasonNoCodeColumn})
	}
	for _, d := range diagnostics {
		s.logger.Warn("bom row skipped",
			zap.String("tank_id", tank.ID),
			zap.Int("row", d.Row),
			zap.String("code", d.Code),
			zap.String("reason", d.Reason))
	}
	if diagnostics == nil {
		diagnostics = []Diagnostic{}
	}
	return processes, diagnostics, nil
}

func (s *TankService) archive(ctx context.Context, tankID string, batch int, file BOMFile) string {
	if s.archiver == nil {
		return ""
	}
	key, err := s.archiver.Store(ctx, tankID, batch, file.Filename, file.Path)
	if err != nil {
		s.logger.Warn("failed to archive bom", zap.String("tank_id", tankID), zap.Error(err))
		return ""
	}
	return key
}

// GetTank 获取储罐详情（含工序及汇总）
func (s *TankService) GetTank(ctx context.Context, id string) (*TankDetail, error) {
	tank, err := s.tankRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "tank", id)
	}
	processes, err := s.processRepo.List(ctx, repository.ProcessFilter{TankID: id})
	if err != nil {
		return nil, apperror.Persistence(err, "failed to list processes")
	}
	return &TankDetail{Tank: tank, Processes: processes, Summary: Summarize(processes)}, nil
}

func (s *TankService) ListTanks(ctx context.Context) ([]entity.Tank, error) {
	tanks, err := s.tankRepo.List(ctx)
	if err != nil {
		return nil, apperror.Persistence(err, "failed to list tanks")
	}
	if tanks == nil {
		tanks = []entity.Tank{}
	}
	return tanks, nil
}

// Summarize totals hours, worker-hours and progress over processes.
func Summarize(processes []entity.Process) TankSummary {
	sum := TankSummary{
		ProcessCount: len(processes),
		StatusCounts: make(map[entity.Status]int, len(entity.Statuses)),
	}
	for _, st := range entity.Statuses {
		sum.StatusCounts[st] = 0
	}
	if len(processes) == 0 {
		return sum
	}

	progress := 0
	for _, p := range processes {
		sum.TotalHours += p.TimeToComplete
		sum.WorkerHours += p.TimeToComplete * float64(p.Workers)
		sum.StatusCounts[p.Status]++
		progress += p.Progress
	}
	sum.AverageProgress = float64(progress) / float64(len(processes))
	sum.IsComplete = sum.StatusCounts[entity.StatusCompleted] == len(processes)
	return sum
}
