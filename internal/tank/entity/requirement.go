package entity

// Requirement is one row of the time/workforce reference table.
type Requirement struct {
	SFGCode         string  `json:"sfg_code" mapstructure:"sfg_code"`
	ProcessName     string  `json:"process_name,omitempty" mapstructure:"process_name"`
	WorkersRequired int     `json:"workers_required" mapstructure:"workers_required"`
	TimeRequiredHrs float64 `json:"time_required_hrs" mapstructure:"time_required_hrs"`
}
