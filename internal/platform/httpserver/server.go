package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	idempotency "turnstile/contexts/request-integrity/idempotency-service"
	idemhttp "turnstile/contexts/request-integrity/idempotency-service/adapters/http"
	paymentintent "turnstile/contexts/request-integrity/payment-intent-service"
	intenterrors "turnstile/contexts/request-integrity/payment-intent-service/domain/errors"
	intenthttp "turnstile/contexts/request-integrity/payment-intent-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "turnstile/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	intents paymentintent.Module
	idem    idempotency.Module
}

func New(
	intents paymentintent.Module,
	idem idempotency.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		intents: intents,
		idem:    idem,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux; tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	guarded := idemhttp.Middleware(s.idem.Guard, idemhttp.WithLogger(s.logger))
	s.mux.Handle("POST /v1/payment-intents", guarded(http.HandlerFunc(s.handleCreateIntent)))
	s.mux.HandleFunc("GET /v1/payment-intents/{intent_id}", s.handleGetIntent)
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intenthttp.CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIntentError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	resp, err := s.intents.Handler.CreateIntentHandler(r.Context(), req)
	if err != nil {
		writeIntentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	intentID := r.PathValue("intent_id")
	resp, err := s.intents.Handler.GetIntentHandler(r.Context(), intentID)
	if err != nil {
		writeIntentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeIntentDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, intenterrors.ErrInvalidIntentInput):
		writeIntentError(w, http.StatusBadRequest, "invalid_intent_input", err.Error())
	case errors.Is(err, intenterrors.ErrIntentNotFound):
		writeIntentError(w, http.StatusNotFound, "intent_not_found", err.Error())
	default:
		writeIntentError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeIntentError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, intenthttp.ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
