package app

import (
	"net/http"
	"strconv"

	"github.com/courtly/courtly/pkg/org"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {

	// Propagate X-Org-Id header into context for downstream services
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			orgIdHeader := req.Header.Get("X-Org-Id")
			ctx := req.Context()

			if orgIdHeader != "" {
				orgId, err := strconv.ParseInt(orgIdHeader, 10, 64)
				if err != nil {
					log.Debugf("invalid organization id: %s", orgIdHeader)
					http.Error(w, "invalid organization id", http.StatusBadRequest)
					return
				}
				ctx = org.WithOrg(ctx, orgId)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
}
