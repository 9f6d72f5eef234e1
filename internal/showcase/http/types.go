package http

import (
	"context"
	"time"

	"github.com/ivory-showcase/showcase-backend/internal/showcase/aggregate"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/service"
	"go.uber.org/zap"
)

const maxPageSize = 50

// ProjectSource is the data source behind the project endpoints
type ProjectSource interface {
	Snapshot(ctx context.Context) service.State
	List(ctx context.Context, q aggregate.Query) (aggregate.Page, service.State)
	Refetch(ctx context.Context) <-chan error
}

// Handler handles HTTP requests for showcase projects
type Handler struct {
	source ProjectSource
	logger *zap.Logger
}

// New creates a new Handler
func New(source ProjectSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		source: source,
		logger: logger.Named("http"),
	}
}

type LoadingResponse struct {
	Owned   bool `json:"owned"`
	Fields  bool `json:"fields"`
	Details bool `json:"details"`
	Any     bool `json:"any"`
}

type ListResponse struct {
	Loading    LoadingResponse        `json:"loading"`
	Error      string                 `json:"error,omitempty"`
	Items      []domain.ProjectRecord `json:"items"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	Total      int                    `json:"total"`
	TotalPages int                    `json:"total_pages"`
	FetchedAt  *time.Time             `json:"fetched_at,omitempty"`
}

type AllResponse struct {
	Loading   LoadingResponse        `json:"loading"`
	Error     string                 `json:"error,omitempty"`
	Items     []domain.ProjectRecord `json:"items"`
	Count     int                    `json:"count"`
	FetchedAt *time.Time             `json:"fetched_at,omitempty"`
}

type RefetchResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

func loadingOf(st service.State) LoadingResponse {
	return LoadingResponse{
		Owned:   st.Loading.Owned,
		Fields:  st.Loading.Fields,
		Details: st.Loading.Details,
		Any:     st.Loading.Any(),
	}
}

func errorOf(st service.State) string {
	if st.Err == nil {
		return ""
	}
	return st.Err.Error()
}

func fetchedAtOf(st service.State) *time.Time {
	if st.FetchedAt.IsZero() {
		return nil
	}
	t := st.FetchedAt.UTC()
	return &t
}
