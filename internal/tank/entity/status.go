package entity

import "strings"

// Status is the board column a tank or process sits in.
type Status string

const (
	StatusOpen      Status = "open"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusQC        Status = "qc"
)

// Statuses lists the columns in board order.
var Statuses = []Status{StatusOpen, StatusOngoing, StatusCompleted, StatusQC}

// ParseStatus accepts one of the four status tokens, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

func (s Status) String() string {
	return string(s)
}
