package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"turnstile/contexts/request-integrity/idempotency-service/application"
	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
	httptransport "turnstile/contexts/request-integrity/idempotency-service/transport/http"
	"turnstile/internal/shared/requestctx"

	"github.com/google/uuid"
)

// errHandlerFailed marks a guarded handler that produced a server error; the
// claim is rolled back and the recorded response still goes to the client.
var errHandlerFailed = errors.New("guarded handler failed")

type MiddlewareOptions struct {
	Table  string
	Logger *slog.Logger
}

type Option func(*MiddlewareOptions)

// WithTable selects the claim table guarding the wrapped routes.
func WithTable(name string) Option {
	return func(options *MiddlewareOptions) {
		options.Table = name
	}
}

// WithLogger sets the middleware logger.
func WithLogger(logger *slog.Logger) Option {
	return func(options *MiddlewareOptions) {
		options.Logger = logger
	}
}

// Middleware guards the wrapped handler with the idempotency state machine.
// Duplicate submissions of the same key short-circuit to the finalized
// response or a conflict without re-running the handler.
func Middleware(guard application.Guard, opts ...Option) func(http.Handler) http.Handler {
	options := &MiddlewareOptions{Table: application.DefaultTableName}
	for _, opt := range opts {
		opt(options)
	}
	logger := application.ResolveLogger(options.Logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get("X-Request-Id")
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			ctx := requestctx.Push(r.Context(), requestctx.State{CorrelationID: correlationID})
			w.Header().Set("X-Request-Id", correlationID)

			recorder := newResponseRecorder()
			result, err := guard.Execute(ctx, options.Table, requestInfo(r), func(ctx context.Context) (entities.GuardedResponse, error) {
				next.ServeHTTP(recorder, r.WithContext(ctx))
				response := entities.GuardedResponse{
					StatusCode: recorder.statusCode(),
					Body:       recorder.body.String(),
				}
				if response.StatusCode >= http.StatusInternalServerError {
					return response, errHandlerFailed
				}
				return response, nil
			})
			if err != nil {
				writeGuardError(w, recorder, logger, correlationID, err)
				return
			}

			switch result.Outcome {
			case application.OutcomeReplayed:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(result.Response.StatusCode)
				_, _ = w.Write([]byte(result.Response.Body))
			case application.OutcomeProcessing:
				writeError(w, http.StatusConflict, httptransport.CodeProcessing, "a request with this idempotency key is still processing")
			default:
				recorder.flush(w)
			}
		})
	}
}

func writeGuardError(w http.ResponseWriter, recorder *responseRecorder, logger *slog.Logger, correlationID string, err error) {
	switch {
	case errors.Is(err, errHandlerFailed):
		// Claim already rolled back; the handler's own error response stands.
		recorder.flush(w)
	case errors.Is(err, domainerrors.ErrIdempotencyKeyRequired):
		writeError(w, http.StatusBadRequest, httptransport.CodeKeyRequired, "the Idempotency-Key header is required for this operation")
	case errors.Is(err, domainerrors.ErrMalformedIdempotencyKey):
		writeError(w, http.StatusBadRequest, httptransport.CodeKeyMalformed, "the Idempotency-Key header value is malformed")
	case errors.Is(err, domainerrors.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, httptransport.CodeConflict, "a request with this idempotency key is already in flight")
	default:
		logger.Error("guarded request failed",
			"event", "idempotency_middleware_failed",
			"module", "request-integrity/idempotency-service",
			"layer", "transport",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, httptransport.CodeInternal, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(httptransport.ErrorResponse{Code: code, Message: message})
}

func requestInfo(r *http.Request) ports.RequestInfo {
	return ports.RequestInfo{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header,
	}
}

// responseRecorder buffers the guarded handler's response so nothing reaches
// the client before the claim is finalized and committed.
type responseRecorder struct {
	header http.Header
	status int
	wrote  bool
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: make(http.Header)}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wrote {
		r.status = status
		r.wrote = true
	}
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}

func (r *responseRecorder) statusCode() int {
	if !r.wrote {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) flush(w http.ResponseWriter) {
	for name, values := range r.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(r.statusCode())
	_, _ = w.Write(r.body.Bytes())
}
