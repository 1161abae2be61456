package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/auth"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	gql "github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"go.uber.org/zap"
)

type viewerKey struct{}

// Viewer is the caller resolved from the bearer token. Both fields are empty
// for anonymous requests.
type Viewer struct {
	UserID string
	Token  string
}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

func ViewerFrom(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerKey{}).(Viewer)
	return v
}

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler serves a single GraphQL endpoint.
type Handler struct {
	schema gql.Schema
	tokens middleware.TokenParser
	logger *zap.Logger
}

func NewHandler(schema gql.Schema, tokens middleware.TokenParser, logger *zap.Logger) *Handler {
	return &Handler{schema: schema, tokens: tokens, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("query")
		req.OperationName = r.URL.Query().Get("operationName")
		if vars := r.URL.Query().Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid variables"})
				return
			}
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
			return
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing query"})
		return
	}
	if r.Method == http.MethodGet {
		// 파싱 오류는 실행 단계에서 그대로 보고됨
		if op, err := operationType(req.Query, req.OperationName); err == nil && op != ast.OperationTypeQuery {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Only queries are allowed over GET"})
			return
		}
	}

	result := gql.Do(gql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        WithViewer(r.Context(), h.viewer(r)),
	})
	if result.HasErrors() {
		h.logger.Warn("GraphQL request returned errors",
			zap.String("operation", req.OperationName),
			zap.Any("errors", result.Errors))
	}

	writeJSON(w, http.StatusOK, result)
}

// operationType returns the type of the operation named by name, or of the
// only operation in the document when name is empty.
func operationType(query, name string) (string, error) {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return "", err
	}
	var found *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if name == "" {
			if found != nil {
				return "", errors.New("operation name required")
			}
			found = op
			continue
		}
		if op.Name != nil && op.Name.Value == name {
			found = op
		}
	}
	if found == nil {
		return "", errors.New("operation not found")
	}
	return found.Operation, nil
}

// viewer treats a missing or invalid token as an anonymous caller; the
// mutations reject anonymous callers themselves.
func (h *Handler) viewer(r *http.Request) Viewer {
	tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return Viewer{}
	}
	claims, err := h.tokens.Parse(tok)
	if err != nil {
		h.logger.Debug("Ignoring invalid bearer token", zap.Error(err))
		return Viewer{}
	}
	return Viewer{UserID: claims.UserID, Token: tok}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewRouter mounts /graphql and /health on a chi router.
func NewRouter(h *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/graphql", h)
	return r
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", r.RemoteAddr),
				zap.String("request_id", chimw.GetReqID(r.Context())))
		})
	}
}
