package controllers

import (
	"net/http"

	"github.com/evermark/servicedesk-backend/api/responses"
	"github.com/evermark/servicedesk-backend/api/validators"
	"github.com/evermark/servicedesk-backend/internal/notify"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

type caseNotifyRequest struct {
	Campaign string  `json:"campaign"`
	Note     *string `json:"note"`
}

// CaseNotify pushes a campaign event to the case's customer.
func CaseNotify(svc notify.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notify service unavailable"))
			return
		}

		caseID, err := caseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The body is optional; an empty POST pushes the default campaign.
		var payload caseNotifyRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Notify(r.Context(), caseID, notify.Input{
			Campaign:   payload.Campaign,
			Note:       payload.Note,
			ActorEmail: operatorEmailPtr(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
