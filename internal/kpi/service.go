package kpi

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dbpkg "github.com/evermark/servicedesk-backend/pkg/db"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
)

const (
	queueUnassigned   = "unassigned"
	repeatSerialLimit = 5
)

// Service computes operational KPIs over the case store.
type Service interface {
	Compute(ctx context.Context, filter Filter) (*Report, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the KPI service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("kpi repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Compute folds the filtered case set into a Report in a single pass.
// Rates with an empty denominator come back nil, never a division by zero.
func (s *service) Compute(ctx context.Context, filter Filter) (*Report, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	cases, err := s.repo.ListForRollup(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load cases for rollup")
	}

	now := s.now().UTC()
	report := &Report{GeneratedAt: now}

	var (
		knownWarranty  int
		turnaroundSum  float64
		turnaroundN    int
		repairCostSum  decimal.Decimal
		repairCostN    int
		queue          = map[string]int{}
		casesPerSerial = map[string]int{}
	)

	for i := range cases {
		c := &cases[i]
		report.TotalCases++

		open := c.IsOpen()
		if open {
			report.OpenCases++
			if c.SlaDueAt != nil && c.SlaDueAt.Before(now) {
				report.OverdueCases++
			}
			queue[technicianBucket(c.AssignedTechnicianEmail)]++
		}

		if c.WarrantyStatus.IsKnown() {
			knownWarranty++
			if c.WarrantyStatus == enums.WarrantyStatusInWarranty {
				report.InWarrantyCases++
			}
		}
		if c.Priority == enums.RmaPriorityHigh || c.Priority == enums.RmaPriorityUrgent {
			report.HighPriorityCases++
		}
		if isLogisticsException(c) {
			report.LogisticsExceptionCases++
		}
		if c.ClosedAt != nil {
			turnaroundSum += c.ClosedAt.Sub(c.CreatedAt).Hours() / 24
			turnaroundN++
		}
		if c.RepairCost != nil {
			repairCostSum = repairCostSum.Add(*c.RepairCost)
			repairCostN++
		}
		if serial := trimmedSerial(c.SerialNumber); serial != "" {
			casesPerSerial[serial]++
		}
	}

	if knownWarranty > 0 {
		pct := float64(report.InWarrantyCases) / float64(knownWarranty) * 100
		report.WarrantyHitRatePct = &pct
	}
	if report.OpenCases > 0 {
		pct := float64(report.LogisticsExceptionCases) / float64(report.OpenCases) * 100
		report.LogisticsExceptionRatePct = &pct
	}
	if turnaroundN > 0 {
		avg := turnaroundSum / float64(turnaroundN)
		report.AvgTurnaroundDays = &avg
	}
	if repairCostN > 0 {
		avg := repairCostSum.Div(decimal.NewFromInt(int64(repairCostN))).Round(2)
		report.AvgRepairCost = &avg
	}

	report.QueueByTechnician = technicianQueues(queue)
	report.RepeatIssueSerials = repeatSerials(casesPerSerial)
	return report, nil
}

func validateFilter(filter Filter) error {
	if filter.Source != nil && !filter.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid source filter")
	}
	if filter.WarrantyStatus != nil && !filter.WarrantyStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid warranty status filter")
	}
	if filter.Priority != nil && !filter.Priority.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid priority filter")
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return pkgerrors.New(pkgerrors.CodeValidation, "created_from must not be after created_to")
	}
	return nil
}

// isLogisticsException flags cases whose tracking state lags their status:
// received without inbound tracking, repaired without outbound tracking, or
// returned with outbound tracking but no delivery confirmation.
func isLogisticsException(c *models.RmaCase) bool {
	switch c.Status {
	case enums.RmaCaseStatusReceived:
		return !hasText(c.InboundTrackingNumber)
	case enums.RmaCaseStatusRepairedReplaced:
		return !hasText(c.OutboundTrackingNumber)
	case enums.RmaCaseStatusBackToCustomer:
		return hasText(c.OutboundTrackingNumber) && c.DeliveredBackAt == nil
	default:
		return false
	}
}

func technicianBucket(email *string) string {
	if email == nil {
		return queueUnassigned
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return queueUnassigned
	}
	return strings.ToLower(trimmed)
}

// technicianQueues orders buckets by load, heaviest first, names as tiebreak.
func technicianQueues(queue map[string]int) []TechnicianQueue {
	out := make([]TechnicianQueue, 0, len(queue))
	for technician, open := range queue {
		out = append(out, TechnicianQueue{Technician: technician, OpenCases: open})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenCases != out[j].OpenCases {
			return out[i].OpenCases > out[j].OpenCases
		}
		return out[i].Technician < out[j].Technician
	})
	return out
}

// repeatSerials keeps serials seen on more than one case, highest count
// first, capped at repeatSerialLimit.
func repeatSerials(counts map[string]int) []RepeatSerial {
	out := make([]RepeatSerial, 0, len(counts))
	for serial, n := range counts {
		if n > 1 {
			out = append(out, RepeatSerial{SerialNumber: serial, CaseCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseCount != out[j].CaseCount {
			return out[i].CaseCount > out[j].CaseCount
		}
		return out[i].SerialNumber < out[j].SerialNumber
	})
	if len(out) > repeatSerialLimit {
		out = out[:repeatSerialLimit]
	}
	return out
}

func trimmedSerial(serial *string) string {
	if serial == nil {
		return ""
	}
	return strings.TrimSpace(*serial)
}

func hasText(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}
