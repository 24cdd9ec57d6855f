package kpi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/evermark/servicedesk-backend/pkg/enums"
)

// Filter scopes the rollup to a slice of the case set. Nil fields match
// everything; the created range is inclusive on both ends.
type Filter struct {
	Source                  *enums.RmaSource
	WarrantyStatus          *enums.WarrantyStatus
	Priority                *enums.RmaPriority
	AssignedTechnicianEmail *string
	CreatedFrom             *time.Time
	CreatedTo               *time.Time
}

// Report is the one-pass rollup over the filtered case set. Rate and average
// fields are nil when their denominator is empty rather than zero, so a
// dashboard can distinguish "no data" from "0%".
type Report struct {
	TotalCases        int `json:"total_cases"`
	OpenCases         int `json:"open_cases"`
	OverdueCases      int `json:"overdue_cases"`
	InWarrantyCases   int `json:"in_warranty_cases"`
	HighPriorityCases int `json:"high_priority_cases"`

	WarrantyHitRatePct        *float64 `json:"warranty_hit_rate_pct"`
	LogisticsExceptionCases   int      `json:"logistics_exception_cases"`
	LogisticsExceptionRatePct *float64 `json:"logistics_exception_rate_pct"`

	AvgTurnaroundDays *float64         `json:"avg_turnaround_days"`
	AvgRepairCost     *decimal.Decimal `json:"avg_repair_cost"`

	QueueByTechnician  []TechnicianQueue `json:"queue_by_technician"`
	RepeatIssueSerials []RepeatSerial    `json:"repeat_issue_serials"`

	GeneratedAt time.Time `json:"generated_at"`
}

// TechnicianQueue is one technician's open-case load.
type TechnicianQueue struct {
	Technician string `json:"technician"`
	OpenCases  int    `json:"open_cases"`
}

// RepeatSerial is a serial number that shows up on more than one case.
type RepeatSerial struct {
	SerialNumber string `json:"serial_number"`
	CaseCount    int    `json:"case_count"`
}
