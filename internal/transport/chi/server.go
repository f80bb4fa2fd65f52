package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
	"github.com/kailas-cloud/mongomap/internal/domain/search/request"
	"github.com/kailas-cloud/mongomap/internal/domain/search/result"
	domusage "github.com/kailas-cloud/mongomap/internal/domain/usage"
	domidx "github.com/kailas-cloud/mongomap/internal/index"
	logpkg "github.com/kailas-cloud/mongomap/internal/logger"
	healthuc "github.com/kailas-cloud/mongomap/internal/usecase/health"
)

// maxBodyBytes bounds request bodies; a query vector of a few thousand floats fits easily.
const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the admin HTTP API: collections, indexes, search and embedding usage.
type Server struct {
	collections   CollectionService
	indexes       IndexService
	search        SearchService
	usage         UsageService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	collections CollectionService,
	indexes IndexService,
	search SearchService,
	usage UsageService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		collections: collections,
		indexes:     indexes,
		search:      search,
		usage:       usage,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		indexConflictHandler,
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, codeIndexNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrInvalidSearch, http.StatusBadRequest, codeInvalidSearch),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeInvalidSearch),
		sentinelHandler(domain.ErrEmbedderNotConfigured, http.StatusBadRequest, codeEmbedderNotConfigured),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, codeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrSearchNotSupported, http.StatusNotImplemented, codeSearchNotSupported),
	}
	return s
}

// Register mounts the API on r. /health and /metrics stay at the root, everything else under /v1.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/v1/collections", s.ListCollections)
	r.Delete("/v1/collections/{collection}", s.DeleteCollection)
	r.Get("/v1/collections/{collection}/indexes", s.ListIndexes)
	r.Delete("/v1/collections/{collection}/indexes/{index}", s.DropIndex)
	r.Patch("/v1/collections/{collection}/indexes/{index}", s.PatchIndex)
	r.Get("/v1/collections/{collection}/search-indexes", s.ListSearchIndexes)
	r.Delete("/v1/collections/{collection}/search-indexes/{index}", s.DropSearchIndex)
	r.Post("/v1/collections/{collection}/search", s.Search)
	r.Get("/v1/usage", s.GetUsage)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
}

// Handler returns a router serving the API behind the given middlewares.
func (s *Server) Handler(middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)
	s.Register(r)
	return r
}

// ListCollections handles GET /v1/collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.collections.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, collectionListResponse{Items: names, Count: len(names)})
}

// DeleteCollection handles DELETE /v1/collections/{collection}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	name, ok := s.pathParam(w, r, "collection")
	if !ok {
		return
	}
	if err := s.collections.Delete(r.Context(), name); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListIndexes handles GET /v1/collections/{collection}/indexes.
func (s *Server) ListIndexes(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.pathParam(w, r, "collection")
	if !ok {
		return
	}
	infos, err := s.indexes.List(r.Context(), coll)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]indexResponse, len(infos))
	for i := range infos {
		items[i] = indexToResponse(&infos[i])
	}
	writeJSON(w, http.StatusOK, indexListResponse{Items: items})
}

// DropIndex handles DELETE /v1/collections/{collection}/indexes/{index}.
func (s *Server) DropIndex(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.pathParam(w, r, "collection")
	if !ok {
		return
	}
	name, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	if err := s.indexes.Drop(r.Context(), coll, name); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchIndex handles PATCH /v1/collections/{collection}/indexes/{index}. Only "hidden" is mutable.
func (s *Server) PatchIndex(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.pathParam(w, r, "collection")
	if !ok {
		return
	}
	name, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	var req patchIndexRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Hidden == nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "hidden is required")
		return
	}
	if err := s.indexes.SetHidden(r.Context(), coll, name, *req.Hidden); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSearchIndexes handles GET /v1/collections/{collection}/search-indexes.
func (s *Server) ListSearchIndexes(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.pathParam(w, r, "collection")
	if !ok {
		return
	}
	infos, err := s.indexes.ListSearch(r.Context(), coll)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]searchIndexResponse, len(infos))
	for i := range infos {
		items[i] = searchIndexToResponse(&infos[i])
	}
	writeJSON(w, http.StatusOK, searchIndexListResponse{Items: items})
}

// DropSearchIndex handles DELETE /v1/collections/{collection}/search-indexes/{index}.
func (s *Server) DropSearchIndex(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.pathParam(w, r, "collection")
	if !ok {
		return
	}
	name, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	if err := s.indexes.DropSearch(r.Context(), coll, name); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Search handles POST /v1/collections/{collection}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.pathParam(w, r, "collection")
	if !ok {
		return
	}
	var body searchRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	params, err := searchParamsFromBody(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidSearch, err.Error())
		return
	}
	if params.Mode.NeedsVector() && (params.Index == "" || params.Path == "") {
		if err := s.defaultVectorTarget(r, coll, &params); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}
	req, err := request.New(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidSearch, err.Error())
		return
	}

	ctx, usage := domain.WithSearchUsage(logpkg.With(r.Context(),
		zap.String("collection", coll), zap.String("mode", string(params.Mode))), coll, params.Mode)
	results, err := s.search.Search(ctx, coll, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	items := make([]searchHit, 0, len(results))
	for i := range results {
		hit, err := searchHitFromResult(&results[i])
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		items = append(items, hit)
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: items, Count: len(items)})
}

// defaultVectorTarget fills a missing index or path from the collection's first vectorSearch index.
func (s *Server) defaultVectorTarget(r *http.Request, coll string, p *request.Params) error {
	infos, err := s.indexes.ListSearch(r.Context(), coll)
	if err != nil {
		return err
	}
	for i := range infos {
		info := &infos[i]
		if info.Type != domidx.SearchTypeVector {
			continue
		}
		if p.Index != "" && p.Index != info.Name {
			continue
		}
		path := firstVectorPath(info.Definition)
		if path == "" {
			continue
		}
		p.Index = info.Name
		if p.Path == "" {
			p.Path = path
		}
		return nil
	}
	return fmt.Errorf("%w: collection %q has no vector search index", domain.ErrInvalidSearch, coll)
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var raw *string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid period parameter")
		return
	}
	var p string
	if raw != nil {
		p = *raw
	}
	period, err := domusage.ParsePeriod(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	budget := report.Budget()
	resp := usageResponse{
		Period: string(report.Period()),
		Tokens: report.Tokens(),
		Budget: budgetStatus{
			TokensLimit:     budget.TokensLimit,
			TokensRemaining: budget.TokensRemaining,
			IsExhausted:     budget.IsExhausted,
		},
	}
	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if budget.ResetsAt > 0 {
		resetsAt := time.UnixMilli(budget.ResetsAt).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("invalid %s parameter", name))
		return "", false
	}
	return v, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.logger.Debug("invalid request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.SearchUsage) {
	if !usage.Embedded() {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	if usage.Cached() {
		w.Header().Set("X-Embedding-Cache", "hit")
	} else {
		w.Header().Set("X-Embedding-Cache", "miss")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrIndexConflict,
		domain.ErrIndexNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrInvalidSchema,
		domain.ErrInvalidQuery,
		domain.ErrInvalidSearch,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbedderNotConfigured,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrSearchNotSupported,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// indexConflictHandler reports which index clashed with an existing definition.
func indexConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrIndexConflict) {
		return false
	}
	resp := errorResponse{Code: codeIndexConflict, Message: msg}
	var ice *domain.IndexConflictError
	if errors.As(err, &ice) {
		resp.Collection = ice.Collection
		resp.Index = ice.Index
	}
	writeJSON(w, http.StatusConflict, resp)
	return true
}

func searchParamsFromBody(b *searchRequest) (request.Params, error) {
	m := mode.Mode(b.Mode)
	if m == "" {
		m = mode.Vector
	}
	if !m.IsValid() {
		return request.Params{}, fmt.Errorf("invalid search mode: %q", b.Mode)
	}
	var filter bson.D
	if len(b.Filter) > 0 && string(b.Filter) != "null" {
		if err := bson.UnmarshalExtJSON(b.Filter, false, &filter); err != nil {
			return request.Params{}, fmt.Errorf("filter must be a JSON object")
		}
	}
	return request.Params{
		Query:         b.Query,
		Vector:        b.Vector,
		Mode:          m,
		Index:         b.Index,
		Path:          b.Path,
		Filter:        filter,
		Limit:         b.Limit,
		NumCandidates: b.NumCandidates,
		MinScore:      b.MinScore,
		Exact:         b.Exact,
	}, nil
}

func searchHitFromResult(r *result.Result) (searchHit, error) {
	doc, err := bson.MarshalExtJSON(r.Document(), false, false)
	if err != nil {
		return searchHit{}, fmt.Errorf("encode search hit: %w", err)
	}
	return searchHit{Document: doc, Score: r.Score()}, nil
}

// firstVectorPath returns the path of the first "vector" field of a vectorSearch definition.
func firstVectorPath(def bson.D) string {
	fields, _ := bsonutil.Get(def, "fields")
	arr, _ := fields.(bson.A)
	for _, f := range arr {
		fd, ok := bsonutil.ToD(f)
		if !ok {
			continue
		}
		if t, _ := bsonutil.Get(fd, "type"); t != "vector" {
			continue
		}
		if p, _ := bsonutil.Get(fd, "path"); p != nil {
			if s, ok := p.(string); ok {
				return s
			}
		}
	}
	return ""
}

func indexToResponse(info *domidx.Info) indexResponse {
	fields := make([]indexField, len(info.Fields))
	for i, f := range info.Fields {
		fields[i] = indexField{
			Key:       f.Key,
			Type:      string(f.Type),
			Direction: int(f.Direction),
			GeoType:   string(f.GeoType),
			Weight:    f.Weight,
		}
	}
	resp := indexResponse{
		Name:     info.Name,
		Fields:   fields,
		Unique:   info.Unique,
		Sparse:   info.Sparse,
		Hidden:   info.Hidden,
		Language: info.Language,
	}
	if len(info.PartialFilterExpression) > 0 {
		resp.PartialFilter = extJSON(info.PartialFilterExpression)
	}
	if info.Collation != nil {
		resp.Collation = extJSON(info.Collation.Document())
	}
	if info.ExpireAfter != nil {
		secs := int64(info.ExpireAfter.Seconds())
		resp.ExpireAfterSeconds = &secs
	}
	return resp
}

func searchIndexToResponse(info *domidx.SearchIndexInfo) searchIndexResponse {
	resp := searchIndexResponse{
		ID:        info.ID,
		Name:      info.Name,
		Type:      string(info.Type),
		Status:    string(info.Status),
		Queryable: info.Queryable,
	}
	if len(info.Definition) > 0 {
		resp.Definition = extJSON(info.Definition)
	}
	return resp
}

// extJSON renders d as relaxed extended JSON, or nil when it cannot be encoded.
func extJSON(d bson.D) json.RawMessage {
	b, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return nil
	}
	return b
}
