package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/internal/serials"
	dbpkg "github.com/evermark/servicedesk-backend/pkg/db"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/outbox"
	"github.com/evermark/servicedesk-backend/pkg/outbox/payloads"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

const (
	recentEventLimit = 10
	rationaleLimit   = 500

	advisorSystemPrompt = "You are a service-desk advisor for consumer electronics returns. " +
		"Given an RMA case, its serial registry, and recent service events, reply with a single JSON object " +
		`{"recommendation": "repair"|"replace"|"monitor", "confidence": 0..1, "rationale": "..."} ` +
		"based only on the supplied history."
)

// fallbackVerdict is used whenever the advisor cannot produce a usable
// answer: transport failure, non-JSON reply, unknown verdict, or a
// confidence outside [0,1].
func fallbackVerdict() (enums.Recommendation, float64, string) {
	return enums.RecommendationMonitor, 0.5, "insufficient history"
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// completer is the chat-completions slice the advisor needs.
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// historyProvider supplies the serial timeline that feeds the prompt.
type historyProvider interface {
	History(ctx context.Context, serialNumber string) (*serials.History, error)
}

// Service produces and records repair-or-replace verdicts.
type Service interface {
	Recommend(ctx context.Context, caseID uuid.UUID, actorEmail *string) (*types.AiRecommendation, error)
}

type service struct {
	cases   rma.Repository
	history historyProvider
	advisor completer
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the recommendation service. The logger is optional.
func NewService(
	cases rma.Repository,
	history historyProvider,
	advisor completer,
	tx txRunner,
	outboxSvc outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if cases == nil {
		return nil, fmt.Errorf("case repository required")
	}
	if history == nil {
		return nil, fmt.Errorf("history provider required")
	}
	if advisor == nil {
		return nil, fmt.Errorf("completion client required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		cases:   cases,
		history: history,
		advisor: advisor,
		tx:      tx,
		outbox:  outboxSvc,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Recommend asks the advisor for a verdict on the case and stores it. The
// remote call happens outside the transaction; an unusable reply degrades to
// the monitor fallback instead of failing the request.
func (s *service) Recommend(ctx context.Context, caseID uuid.UUID, actorEmail *string) (*types.AiRecommendation, error) {
	if caseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "case id is required")
	}

	rmaCase, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "case not found")
		}
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load case")
	}

	prompt, err := s.buildPrompt(ctx, rmaCase)
	if err != nil {
		return nil, err
	}

	verdict, confidence, rationale := fallbackVerdict()
	reply, completeErr := s.advisor.Complete(ctx, advisorSystemPrompt, prompt)
	if completeErr != nil {
		s.logError(ctx, rmaCase.ID, "advisor call failed", completeErr)
	} else if parsed, ok := parseVerdict(reply); ok {
		verdict, confidence, rationale = parsed.recommendation, parsed.confidence, parsed.rationale
	} else {
		s.logError(ctx, rmaCase.ID, "advisor reply unusable", fmt.Errorf("reply: %.120s", reply))
	}

	recommendation := &types.AiRecommendation{
		Recommendation: string(verdict),
		Confidence:     confidence,
		Rationale:      rationale,
		GeneratedAt:    s.now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.cases.WithTx(tx)
		if err := repo.Update(ctx, rmaCase.ID, map[string]any{"ai_recommendation": recommendation}); err != nil {
			return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "persist recommendation")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRecommendationRecorded,
			AggregateType: enums.AggregateRmaCase,
			AggregateID:   rmaCase.ID,
			Actor:         recommendActor(actorEmail),
			Version:       1,
			Data: payloads.RecommendationRecordedEvent{
				CaseID:         rmaCase.ID,
				Recommendation: verdict,
				Confidence:     confidence,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return recommendation, nil
}

type casePrompt struct {
	Status                 enums.RmaCaseStatus  `json:"status"`
	Priority               enums.RmaPriority    `json:"priority"`
	WarrantyStatus         enums.WarrantyStatus `json:"warranty_status"`
	IssueSummary           *string              `json:"issue_summary,omitempty"`
	IssueDetails           *string              `json:"issue_details,omitempty"`
	ArrivalConditionReport *string              `json:"arrival_condition_report,omitempty"`
	RepairCost             *decimal.Decimal     `json:"repair_cost,omitempty"`
	CreatedAt              time.Time            `json:"created_at"`
}

type registryPrompt struct {
	SerialNumber string     `json:"serial_number"`
	Brand        *string    `json:"brand,omitempty"`
	Model        *string    `json:"model,omitempty"`
	RmaCount     int        `json:"rma_count"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastRmaAt    *time.Time `json:"last_rma_at,omitempty"`
}

type eventPrompt struct {
	EventType enums.ServiceEventType `json:"event_type"`
	Summary   string                 `json:"summary"`
	Notes     *string                `json:"notes,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type promptContext struct {
	Case     casePrompt      `json:"case"`
	Registry *registryPrompt `json:"registry,omitempty"`
	Events   []eventPrompt   `json:"recent_events"`
}

func (s *service) buildPrompt(ctx context.Context, rmaCase *models.RmaCase) (string, error) {
	payload := promptContext{
		Case: casePrompt{
			Status:                 rmaCase.Status,
			Priority:               rmaCase.Priority,
			WarrantyStatus:         rmaCase.WarrantyStatus,
			IssueSummary:           rmaCase.IssueSummary,
			IssueDetails:           rmaCase.IssueDetails,
			ArrivalConditionReport: rmaCase.ArrivalConditionReport,
			RepairCost:             rmaCase.RepairCost,
			CreatedAt:              rmaCase.CreatedAt,
		},
		Events: []eventPrompt{},
	}

	if rmaCase.SerialNumber != nil && strings.TrimSpace(*rmaCase.SerialNumber) != "" {
		history, err := s.history.History(ctx, *rmaCase.SerialNumber)
		switch {
		case err == nil:
			payload.Registry = &registryPrompt{
				SerialNumber: history.Registry.SerialNumber,
				Brand:        history.Registry.Brand,
				Model:        history.Registry.Model,
				RmaCount:     history.Registry.RmaCount,
				FirstSeenAt:  history.Registry.FirstSeenAt,
				LastRmaAt:    history.Registry.LastRmaAt,
			}
			for i, event := range history.Events {
				if i == recentEventLimit {
					break
				}
				payload.Events = append(payload.Events, eventPrompt{
					EventType: event.EventType,
					Summary:   event.Summary,
					Notes:     event.Notes,
					CreatedAt: event.CreatedAt,
				})
			}
		case isNotFound(err):
			// A case can reference a serial that never reached the registry.
		default:
			return "", err
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal advisor context")
	}
	return string(raw), nil
}

type parsedVerdict struct {
	recommendation enums.Recommendation
	confidence     float64
	rationale      string
}

type verdictPayload struct {
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale"`
}

// parseVerdict reads the advisor reply, tolerating markdown fences and
// surrounding prose around the JSON object.
func parseVerdict(reply string) (parsedVerdict, bool) {
	raw := strings.TrimSpace(reply)
	if fenced, ok := stripFences(raw); ok {
		raw = fenced
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return parsedVerdict{}, false
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
			return parsedVerdict{}, false
		}
	}

	verdict, err := enums.ParseRecommendation(strings.ToLower(strings.TrimSpace(payload.Recommendation)))
	if err != nil {
		return parsedVerdict{}, false
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return parsedVerdict{}, false
	}

	rationale := strings.TrimSpace(payload.Rationale)
	if utf8.RuneCountInString(rationale) > rationaleLimit {
		rationale = string([]rune(rationale)[:rationaleLimit])
	}

	return parsedVerdict{
		recommendation: verdict,
		confidence:     payload.Confidence,
		rationale:      rationale,
	}, true
}

func stripFences(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "```") {
		return "", false
	}
	body := raw
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body), true
}

func recommendActor(email *string) *outbox.ActorRef {
	if email != nil && strings.TrimSpace(*email) != "" {
		return &outbox.ActorRef{Email: strings.TrimSpace(*email)}
	}
	return &outbox.ActorRef{System: "ai-advisor"}
}

func isNotFound(err error) bool {
	appErr := pkgerrors.As(err)
	return appErr != nil && appErr.Code() == pkgerrors.CodeNotFound
}

func (s *service) logError(ctx context.Context, caseID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithCaseID(ctx, caseID.String()), msg, err)
}
