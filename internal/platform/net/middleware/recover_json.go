package middleware

import (
	"net/http"
	"runtime/debug"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"
	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	pnet "github.com/zinonweke/linear-notion-sync/internal/platform/net"
	phttp "github.com/zinonweke/linear-notion-sync/internal/platform/net/http"
)

// RecoverJSON converts panics into a JSON 500 envelope and logs the stack with the request id
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				reqID := pnet.RequestID(r.Context())
				logger.Named("http").Error().
					Str("request_id", reqID).
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if reqID != "" {
					w.Header().Set("X-Request-ID", reqID)
				}
				phttp.RespondError(w, r, perr.PanicErrf("panic recovered"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
