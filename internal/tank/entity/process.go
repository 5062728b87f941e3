package entity

import (
	"fmt"
	"time"
)

// Process 工序卡片：由BOM中的SFG行派生，隶属于一个Tank
type Process struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	TankID           string    `json:"tankId" gorm:"size:32;not null;index;uniqueIndex:idx_processes_tank_serial"`
	TankName         string    `json:"tankName" gorm:"size:200"`
	ProcessName      string    `json:"processName" gorm:"size:256;not null"`
	SerialNo         string    `json:"serialNo" gorm:"size:16;not null;uniqueIndex:idx_processes_tank_serial"`
	Batch            int       `json:"batch" gorm:"not null;default:1"`
	Position         int       `json:"position" gorm:"not null"`
	SFGCode          string    `json:"sfgCode" gorm:"size:64;not null"`
	Workers          int       `json:"workers" gorm:"not null;default:0"`
	TimeToComplete   float64   `json:"timeToComplete" gorm:"type:numeric(10,2);not null;default:0"` // hours
	Status           Status    `json:"status" gorm:"size:16;not null;default:open;index"`
	Progress         int       `json:"progress" gorm:"not null;default:0"`
	QCCompleted      bool      `json:"qcCompleted" gorm:"not null;default:false"`
	FinalQCCompleted bool      `json:"finalQcCompleted" gorm:"not null;default:false"`
	AddedAt          time.Time `json:"addedAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (Process) TableName() string {
	return "processes"
}

// FormatSerial renders the "{batch}.{position}" serial number.
func FormatSerial(batch, position int) string {
	return fmt.Sprintf("%d.%d", batch, position)
}

// AwaitingQC reports a completed process whose QC has not been signed off.
func (p *Process) AwaitingQC() bool {
	return p.Status == StatusCompleted && !p.QCCompleted
}

// SetStatus moves the card and keeps finalQcCompleted ⇒ qcCompleted ⇒ completed.
func (p *Process) SetStatus(status Status) {
	p.Status = status
	if status != StatusCompleted {
		p.QCCompleted = false
		p.FinalQCCompleted = false
	}
}
