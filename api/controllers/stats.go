package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/stats"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type dashboardReader interface {
	Dashboard(ctx context.Context) *stats.Dashboard
}

// Dashboard never fails on a degraded data source; missing blocks are
// zeroed by the stats service.
func Dashboard(svc dashboardReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stats service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.Dashboard(r.Context()))
	}
}
