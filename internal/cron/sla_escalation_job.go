package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/outbox"
	"github.com/evermark/servicedesk-backend/pkg/outbox/payloads"
)

const escalationBatchLimit = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SlaEscalationJobParams configures the overdue-case sweep.
type SlaEscalationJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	CaseRepo rma.Repository
	Outbox   outboxEmitter
	Limit    int
}

// NewSlaEscalationJob constructs the job that bumps open cases past their
// SLA due date to urgent.
func NewSlaEscalationJob(params SlaEscalationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.CaseRepo == nil {
		return nil, fmt.Errorf("case repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = escalationBatchLimit
	}
	return &slaEscalationJob{
		logg:   params.Logger,
		db:     params.DB,
		cases:  params.CaseRepo,
		outbox: params.Outbox,
		limit:  limit,
		now:    time.Now,
	}, nil
}

type slaEscalationJob struct {
	logg   *logger.Logger
	db     txRunner
	cases  rma.Repository
	outbox outboxEmitter
	limit  int
	now    func() time.Time
}

func (j *slaEscalationJob) Name() string { return "sla-escalation" }

// Run escalates each overdue case in its own transaction. MarkUrgent repeats
// the overdue conditions, so a case that closed or was already escalated
// between the list and the update is skipped without an event.
func (j *slaEscalationJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	overdue, err := j.cases.ListEscalatable(ctx, asOf, j.limit)
	if err != nil {
		return fmt.Errorf("list overdue cases: %w", err)
	}

	var runErr error
	escalated := 0
	for i := range overdue {
		overdueCase := overdue[i]
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := j.cases.WithTx(tx)
			rows, err := repo.MarkUrgent(ctx, overdueCase.ID, asOf)
			if err != nil {
				return err
			}
			if rows == 0 {
				return nil
			}
			escalated++
			return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCaseEscalated,
				AggregateType: enums.AggregateRmaCase,
				AggregateID:   overdueCase.ID,
				Actor:         &outbox.ActorRef{System: "sla-escalation"},
				Version:       1,
				Data: payloads.CaseEscalatedEvent{
					CaseID:       overdueCase.ID,
					Status:       overdueCase.Status,
					FromPriority: overdueCase.Priority,
					ToPriority:   enums.RmaPriorityUrgent,
					SlaDueAt:     *overdueCase.SlaDueAt,
				},
			})
		})
		if err != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("escalate case %s: %w", overdueCase.ID, err))
		}
	}
	if runErr != nil {
		return runErr
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue_cases": len(overdue),
		"escalated":     escalated,
	})
	j.logg.Info(logCtx, "sla escalation sweep complete")
	return nil
}
