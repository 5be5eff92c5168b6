package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/x402-resource-server/pkg/discovery"
	"github.com/code-payments/x402-resource-server/pkg/netutil"
	"github.com/code-payments/x402-resource-server/pkg/rate"
	"github.com/code-payments/x402-resource-server/pkg/resource"
	"github.com/code-payments/x402-resource-server/pkg/x402"
)

const (
	resourcePathValue = "resource"

	PaidResourcePattern = "POST /api/agents/{" + resourcePathValue + "}"
	AgentCardPattern    = "GET /api/agents/{" + resourcePathValue + "}/.well-known/agent.json"
	HealthPattern       = "GET /healthz"

	requestIdHeaderName        = "X-Request-Id"
	exposeHeadersHeaderName    = "Access-Control-Expose-Headers"
	contentTypeHeaderName      = "Content-Type"
	jsonContentTypeHeaderValue = "application/json"
)

// Server binds the payment gated resources to HTTP
type Server struct {
	log     *logrus.Entry
	handler *Handler
	limiter rate.Limiter
}

func NewServer(handler *Handler) *Server {
	ctx := context.Background()

	var limiter rate.Limiter = &rate.NoLimiter{}
	if perSecond := handler.conf.rateLimitPerSecond.Get(ctx); perSecond > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(perSecond), int(handler.conf.rateLimitBurst.Get(ctx)))
	}

	return &Server{
		log:     logrus.StandardLogger().WithField("type", "x402/server"),
		handler: handler,
		limiter: limiter,
	}
}

func (s *Server) paidResourceHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestId := uuid.NewString()
		resourceId := r.PathValue(resourcePathValue)
		clientIp := netutil.GetClientIp(r)

		log := s.log.WithFields(logrus.Fields{
			"path":       path,
			"resource":   resourceId,
			"request_id": requestId,
			"client_ip":  clientIp,
		})

		w.Header().Set(requestIdHeaderName, requestId)

		allowed, err := s.limiter.Allow(clientIp)
		if err != nil {
			log.WithError(err).Warn("failure checking rate limit")
		} else if !allowed {
			resp := newRejection(nil, OutcomeRateLimited, "rate limited")
			recordPaidRequestEvent(ctx, resourceId, resp, 0)
			s.writeResponse(w, log, resp)
			return
		}

		maxBodySize := int64(s.handler.conf.maxBodySize.Get(ctx))
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				s.writeResponse(w, log, newMalformedRequest(nil, http.StatusRequestEntityTooLarge, codeInvalidRequest, "Request body too large", nil, "body too large"))
				return
			}

			log.WithError(err).Warn("failure reading http body")
			s.writeResponse(w, log, newMalformedRequest(nil, http.StatusBadRequest, codeParseError, parseErrorMessage, nil, "unreadable body"))
			return
		}

		resp := s.handler.Handle(ctx, &PaidRequest{
			RequestId:  requestId,
			ResourceId: resourceId,
			Body:       body,
			Proof:      r.Header.Get(x402.PaymentHeaderName),
		})
		s.writeResponse(w, log, resp)
	}
}

func (s *Server) agentCardHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resourceId := r.PathValue(resourcePathValue)
		log := s.log.WithFields(logrus.Fields{
			"path":     path,
			"resource": resourceId,
		})

		statusCode, body := func() (int, interface{}) {
			if !s.handler.conf.enableAgentCards.Get(ctx) {
				return http.StatusNotFound, map[string]string{"error": resourceNotFoundMessage}
			}

			res, err := s.handler.registry.Get(resourceId)
			if err == resource.ErrResourceNotFound {
				return http.StatusNotFound, map[string]string{"error": resourceNotFoundMessage}
			} else if err != nil {
				log.WithError(err).Warn("failure getting resource")
				return http.StatusInternalServerError, map[string]string{"error": internalErrorMessage}
			}

			terms, err := s.handler.terms.GetPaymentTerms(ctx, resourceId)
			if err != nil {
				log.WithError(err).Warn("failure getting payment terms")
				return http.StatusInternalServerError, map[string]string{"error": internalErrorMessage}
			}

			return http.StatusOK, discovery.NewAgentCard(res, s.handler.conf.baseUrl.Get(ctx), terms)
		}()

		s.writeJson(w, log, statusCode, body)
	}
}

func (s *Server) healthHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)
		s.writeJson(w, log, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, log *logrus.Entry, resp *Response) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	if _, ok := resp.Headers[x402.PaymentResponseHeaderName]; ok {
		w.Header().Set(exposeHeadersHeaderName, x402.PaymentResponseHeaderName)
	}
	s.writeJson(w, log, resp.StatusCode, resp.Body)
}

func (s *Server) writeJson(w http.ResponseWriter, log *logrus.Entry, statusCode int, body interface{}) {
	serialized, err := json.Marshal(body)
	if err != nil {
		log.WithError(err).Warn("failure marshalling response body")
		statusCode = http.StatusInternalServerError
		serialized, _ = json.Marshal(newRpcError(nil, codeInternalError, internalErrorMessage, nil))
	}

	w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
	w.WriteHeader(statusCode)
	w.Write(serialized)
}

// GetHandlers returns the HTTP handlers keyed by their mux pattern
func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		PaidResourcePattern: s.paidResourceHandler(PaidResourcePattern),
		AgentCardPattern:    s.agentCardHandler(AgentCardPattern),
		HealthPattern:       s.healthHandler(HealthPattern),
	}
}

// NewServeMux registers all handlers on a new mux
func (s *Server) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	for pattern, handler := range s.GetHandlers() {
		mux.HandleFunc(pattern, handler)
	}
	return mux
}
