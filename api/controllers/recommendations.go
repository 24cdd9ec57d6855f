package controllers

import (
	"net/http"

	"github.com/evermark/servicedesk-backend/api/responses"
	"github.com/evermark/servicedesk-backend/internal/recommend"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

// CaseRecommendation asks the advisor for a repair-or-replace verdict and
// stores it on the case.
func CaseRecommendation(svc recommend.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recommendation service unavailable"))
			return
		}

		caseID, err := caseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recommendation, err := svc.Recommend(r.Context(), caseID, operatorEmailPtr(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, recommendation)
	}
}
