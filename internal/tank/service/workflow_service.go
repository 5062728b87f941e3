package service

import (
	"context"
	"math"

	"github.com/ashtavinayaka/tankflow/internal/metrics"
	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"go.uber.org/zap"
)

// StatusChange is the outcome of a status request. TankComplete is set when
// the change left every process of the tank completed.
type StatusChange struct {
	Process        *entity.Process `json:"process"`
	PreviousStatus entity.Status   `json:"previousStatus"`
	TankComplete   bool            `json:"tankComplete"`
	TankStatus     entity.Status   `json:"tankStatus"`
}

// CompletionStatus answers whether a tank is ready for final QC.
type CompletionStatus struct {
	TankID     string `json:"tankId"`
	IsComplete bool   `json:"isComplete"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
}

// FinalQCResult reports a final QC booking.
type FinalQCResult struct {
	Tank          *entity.Tank `json:"tank"`
	Processes     int          `json:"processes"`
	AlreadyBooked bool         `json:"alreadyBooked"`
}

// WorkflowService 工序状态流转
// Transitions are permissive: any of the four statuses may follow any other.
type WorkflowService struct {
	tankRepo    repository.TankRepository
	processRepo repository.ProcessRepository
	publisher   sse.Publisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewWorkflowService(deps Deps) *WorkflowService {
	return &WorkflowService{
		tankRepo:    deps.Repos.Tank,
		processRepo: deps.Repos.Process,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// SetStatus 设置工序状态
func (s *WorkflowService) SetStatus(ctx context.Context, processID, status string) (*StatusChange, error) {
	target, ok := entity.ParseStatus(status)
	if !ok {
		return nil, apperror.Validation("invalid status %q", status)
	}
	p, err := s.processRepo.FindByID(ctx, processID)
	if err != nil {
		return nil, storeError(err, "process", processID)
	}
	return s.apply(ctx, p, target)
}

// SetStatusBySerial addresses the process by tank and serial number, as the board's drag handler does.
func (s *WorkflowService) SetStatusBySerial(ctx context.Context, tankID, serialNo, status string) (*StatusChange, error) {
	target, ok := entity.ParseStatus(status)
	if !ok {
		return nil, apperror.Validation("invalid status %q", status)
	}
	p, err := s.processRepo.FindByTankAndSerial(ctx, tankID, serialNo)
	if err != nil {
		return nil, storeError(err, "process", tankID+"/"+serialNo)
	}
	return s.apply(ctx, p, target)
}

func (s *WorkflowService) apply(ctx context.Context, p *entity.Process, target entity.Status) (*StatusChange, error) {
	prev := p.Status
	p.SetStatus(target)
	if err := s.processRepo.Save(ctx, p); err != nil {
		return nil, storeError(err, "process", p.ID)
	}
	s.metrics.RecordStatusChange(string(target))
	s.logger.Info("process status changed",
		zap.String("process_id", p.ID),
		zap.String("tank_id", p.TankID),
		zap.String("serial_no", p.SerialNo),
		zap.String("from", string(prev)),
		zap.String("to", string(target)))
	s.publisher.Publish(ctx, sse.ProcessUpdate(p, "status_change"))

	tankStatus, complete, err := s.refreshTankStatus(ctx, p.TankID)
	if err != nil {
		return nil, err
	}

	change := &StatusChange{Process: p, PreviousStatus: prev, TankStatus: tankStatus}
	if target == entity.StatusCompleted && complete {
		change.TankComplete = true
		s.metrics.RecordTankCompleted()
		s.publisher.Publish(ctx, sse.TankUpdate(p.TankID, tankStatus, "all_completed"))
	}
	return change, nil
}

// VerifyStatus reads the current card before a drag is committed.
func (s *WorkflowService) VerifyStatus(ctx context.Context, tankID, serialNo string) (*entity.Process, error) {
	p, err := s.processRepo.FindByTankAndSerial(ctx, tankID, serialNo)
	if err != nil {
		return nil, storeError(err, "process", tankID+"/"+serialNo)
	}
	return p, nil
}

// UpdateProgress 更新工序进度
// The value must be a whole number in [0,100]; it is stored whatever the process status.
func (s *WorkflowService) UpdateProgress(ctx context.Context, processID string, progress float64) (*entity.Process, error) {
	if math.IsNaN(progress) || progress != math.Trunc(progress) {
		return nil, apperror.Validation("progress must be an integer")
	}
	if progress < 0 || progress > 100 {
		return nil, apperror.Validation("progress must be between 0 and 100")
	}

	p, err := s.processRepo.FindByID(ctx, processID)
	if err != nil {
		return nil, storeError(err, "process", processID)
	}
	p.Progress = int(progress)
	if err := s.processRepo.Save(ctx, p); err != nil {
		return nil, storeError(err, "process", processID)
	}
	s.metrics.RecordProgressUpdate()
	s.publisher.Publish(ctx, sse.ProcessUpdate(p, "progress"))
	return p, nil
}

// CheckCompletion reads all processes of the tank and compares. A tank with no processes is not complete.
func (s *WorkflowService) CheckCompletion(ctx context.Context, tankID string) (*CompletionStatus, error) {
	if _, err := s.tankRepo.FindByID(ctx, tankID); err != nil {
		return nil, storeError(err, "tank", tankID)
	}
	processes, err := s.processRepo.List(ctx, repository.ProcessFilter{TankID: tankID})
	if err != nil {
		return nil, apperror.Persistence(err, "failed to list processes")
	}
	res := &CompletionStatus{TankID: tankID, Total: len(processes)}
	for _, p := range processes {
		if p.Status == entity.StatusCompleted {
			res.Completed++
		}
	}
	res.IsComplete = res.Total > 0 && res.Completed == res.Total
	return res, nil
}

// CompleteQC 工序QC签核，仅已完成工序可签
func (s *WorkflowService) CompleteQC(ctx context.Context, processID string) (*entity.Process, error) {
	p, err := s.processRepo.FindByID(ctx, processID)
	if err != nil {
		return nil, storeError(err, "process", processID)
	}
	if p.Status != entity.StatusCompleted {
		return nil, apperror.Validation("process %s is %s, only completed processes can pass QC", p.SerialNo, p.Status)
	}
	p.QCCompleted = true
	if err := s.processRepo.Save(ctx, p); err != nil {
		return nil, storeError(err, "process", processID)
	}
	s.publisher.Publish(ctx, sse.ProcessUpdate(p, "qc_completed"))
	return p, nil
}

// BookFinalQC 预约终检：所有工序完成后标记QC标志，储罐进入qc
// Repeated calls rewrite the same flags and report AlreadyBooked.
func (s *WorkflowService) BookFinalQC(ctx context.Context, tankID string) (*FinalQCResult, error) {
	tank, err := s.tankRepo.FindByID(ctx, tankID)
	if err != nil {
		return nil, storeError(err, "tank", tankID)
	}
	processes, err := s.processRepo.List(ctx, repository.ProcessFilter{TankID: tankID})
	if err != nil {
		return nil, apperror.Persistence(err, "failed to list processes")
	}
	if len(processes) == 0 {
		return nil, apperror.Validation("tank %s has no processes", tankID)
	}

	already := tank.Status == entity.StatusQC
	updates := make([]*entity.Process, 0, len(processes))
	for i := range processes {
		p := &processes[i]
		if p.Status != entity.StatusCompleted {
			return nil, apperror.Validation("process %s is %s, all processes must be completed before final QC", p.SerialNo, p.Status)
		}
		already = already && p.FinalQCCompleted
		p.QCCompleted = true
		p.FinalQCCompleted = true
		updates = append(updates, p)
	}

	if err := s.processRepo.SaveAll(ctx, updates); err != nil {
		return nil, apperror.Persistence(err, "failed to save processes")
	}
	if err := s.tankRepo.UpdateStatus(ctx, tankID, entity.StatusQC); err != nil {
		return nil, storeError(err, "tank", tankID)
	}
	tank.Status = entity.StatusQC

	s.metrics.RecordFinalQC()
	s.logger.Info("final qc booked",
		zap.String("tank_id", tankID),
		zap.Int("processes", len(updates)),
		zap.Bool("already_booked", already))
	s.publisher.Publish(ctx, sse.TankUpdate(tankID, entity.StatusQC, "final_qc"))

	return &FinalQCResult{Tank: tank, Processes: len(updates), AlreadyBooked: already}, nil
}

// refreshTankStatus re-derives the tank status from its processes and
// stores it when it changed. It reports whether every process is completed.
func (s *WorkflowService) refreshTankStatus(ctx context.Context, tankID string) (entity.Status, bool, error) {
	tank, err := s.tankRepo.FindByID(ctx, tankID)
	if err != nil {
		return "", false, storeError(err, "tank", tankID)
	}
	processes, err := s.processRepo.List(ctx, repository.ProcessFilter{TankID: tankID})
	if err != nil {
		return "", false, apperror.Persistence(err, "failed to list processes")
	}

	next, complete := DeriveTankStatus(tank.Status, processes)
	if next != tank.Status {
		if err := s.tankRepo.UpdateStatus(ctx, tankID, next); err != nil {
			return "", false, storeError(err, "tank", tankID)
		}
		s.publisher.Publish(ctx, sse.TankUpdate(tankID, next, "status_change"))
	}
	return next, complete, nil
}

// DeriveTankStatus: all completed → completed (qc stays qc); any process past
// open → ongoing; otherwise open. A tank without processes keeps its status.
func DeriveTankStatus(current entity.Status, processes []entity.Process) (entity.Status, bool) {
	if len(processes) == 0 {
		return current, false
	}
	completed, started := 0, false
	for _, p := range processes {
		if p.Status == entity.StatusCompleted {
			completed++
		}
		if p.Status != entity.StatusOpen {
			started = true
		}
	}
	switch {
	case completed == len(processes):
		if current == entity.StatusQC {
			return entity.StatusQC, true
		}
		return entity.StatusCompleted, true
	case started:
		return entity.StatusOngoing, false
	default:
		return entity.StatusOpen, false
	}
}
