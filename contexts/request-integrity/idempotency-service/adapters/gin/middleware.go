package gin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"turnstile/contexts/request-integrity/idempotency-service/application"
	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
	httptransport "turnstile/contexts/request-integrity/idempotency-service/transport/http"
	"turnstile/internal/shared/requestctx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

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

// Middleware is the gin flavor of the idempotency guard. The chain's response
// is buffered until the claim is finalized and committed, so duplicates only
// ever observe completed results.
func Middleware(guard application.Guard, opts ...Option) gin.HandlerFunc {
	options := &MiddlewareOptions{Table: application.DefaultTableName}
	for _, opt := range opts {
		opt(options)
	}
	logger := application.ResolveLogger(options.Logger)

	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Request-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		ctx := requestctx.Push(c.Request.Context(), requestctx.State{CorrelationID: correlationID})
		c.Header("X-Request-Id", correlationID)

		capture := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = capture

		result, err := guard.Execute(ctx, options.Table, requestInfo(c.Request), func(ctx context.Context) (entities.GuardedResponse, error) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			response := entities.GuardedResponse{
				StatusCode: capture.statusCode(),
				Body:       capture.body.String(),
			}
			if response.StatusCode >= http.StatusInternalServerError {
				return response, errHandlerFailed
			}
			return response, nil
		})

		c.Writer = capture.ResponseWriter
		if err != nil {
			writeGuardError(c, capture, logger, correlationID, err)
			return
		}

		switch result.Outcome {
		case application.OutcomeReplayed:
			c.Abort()
			c.Data(result.Response.StatusCode, "application/json", []byte(result.Response.Body))
		case application.OutcomeProcessing:
			c.AbortWithStatusJSON(http.StatusConflict, httptransport.ErrorResponse{
				Code:    httptransport.CodeProcessing,
				Message: "a request with this idempotency key is still processing",
			})
		default:
			capture.release()
		}
	}
}

func writeGuardError(c *gin.Context, capture *bufferedWriter, logger *slog.Logger, correlationID string, err error) {
	switch {
	case errors.Is(err, errHandlerFailed):
		// Claim already rolled back; the handler's own error response stands.
		capture.release()
	case errors.Is(err, domainerrors.ErrIdempotencyKeyRequired):
		c.AbortWithStatusJSON(http.StatusBadRequest, httptransport.ErrorResponse{
			Code:    httptransport.CodeKeyRequired,
			Message: "the Idempotency-Key header is required for this operation",
		})
	case errors.Is(err, domainerrors.ErrMalformedIdempotencyKey):
		c.AbortWithStatusJSON(http.StatusBadRequest, httptransport.ErrorResponse{
			Code:    httptransport.CodeKeyMalformed,
			Message: "the Idempotency-Key header value is malformed",
		})
	case errors.Is(err, domainerrors.ErrIdempotencyConflict):
		c.AbortWithStatusJSON(http.StatusConflict, httptransport.ErrorResponse{
			Code:    httptransport.CodeConflict,
			Message: "a request with this idempotency key is already in flight",
		})
	default:
		logger.Error("guarded request failed",
			"event", "idempotency_middleware_failed",
			"module", "request-integrity/idempotency-service",
			"layer", "transport",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, httptransport.ErrorResponse{
			Code:    httptransport.CodeInternal,
			Message: "internal error",
		})
	}
}

func requestInfo(r *http.Request) ports.RequestInfo {
	return ports.RequestInfo{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header,
	}
}

// bufferedWriter holds back everything the chain writes until the guard
// decides the request's fate.
type bufferedWriter struct {
	gin.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *bufferedWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *bufferedWriter) release() {
	w.ResponseWriter.WriteHeader(w.statusCode())
	_, _ = w.ResponseWriter.Write(w.body.Bytes())
}
