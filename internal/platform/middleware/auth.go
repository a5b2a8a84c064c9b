package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/httputil"
	"expatdesk/pkg/requestcontext"
)

// OperatorValidator validates a bearer token and returns the operator subject.
type OperatorValidator interface {
	ValidateOperator(tokenString string) (string, error)
}

// RequireOperator rejects requests without a valid operator bearer token.
func RequireOperator(validator OperatorValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.Warn("unauthorized access - missing token", zap.String("request_id", requestID))
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			operatorID, err := validator.ValidateOperator(token)
			if err != nil {
				logger.Warn("unauthorized access - invalid token",
					zap.Error(err),
					zap.String("request_id", requestID),
				)
				if dErrors.HasCode(err, dErrors.CodeForbidden) {
					httputil.WriteError(w, err)
					return
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithOperatorID(ctx, operatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
