package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/aggregate"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	state      service.State
	lastQuery  aggregate.Query
	refetchErr error
	refetches  int
}

func (f *fakeSource) Snapshot(ctx context.Context) service.State {
	return f.state
}

func (f *fakeSource) List(ctx context.Context, q aggregate.Query) (aggregate.Page, service.State) {
	f.lastQuery = q
	return aggregate.Apply(f.state.Projects, q), f.state
}

func (f *fakeSource) Refetch(ctx context.Context) <-chan error {
	f.refetches++
	done := make(chan error, 1)
	done <- f.refetchErr
	return done
}

func projects(n int) []domain.ProjectRecord {
	out := make([]domain.ProjectRecord, n)
	for i := range out {
		out[i] = domain.ProjectRecord{
			ID:          i,
			SiteName:    fmt.Sprintf("site-%02d", i),
			Owner:       "0xowner",
			ShowcaseURL: fmt.Sprintf("https://site-%02d.example", i),
		}
	}
	return out
}

func setupRouter(src ProjectSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(src, zap.NewNop()).Register(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type listBody struct {
	Loading    LoadingResponse  `json:"loading"`
	Error      string           `json:"error"`
	Items      []map[string]any `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
	FetchedAt  *time.Time       `json:"fetched_at"`
}

func TestListProjects_Pagination(t *testing.T) {
	fetched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{state: service.State{Projects: projects(13), FetchedAt: fetched}}
	r := setupRouter(src)

	rr := do(t, r, http.MethodGet, "/api/v1/projects?page=3")
	require.Equal(t, http.StatusOK, rr.Code)

	var body listBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Page)
	assert.Equal(t, aggregate.DefaultPageSize, body.PageSize)
	assert.Equal(t, 13, body.Total)
	assert.Equal(t, 3, body.TotalPages)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "site-12", body.Items[0]["site-name"])
	require.NotNil(t, body.FetchedAt)
	assert.True(t, fetched.Equal(*body.FetchedAt))
	assert.Empty(t, body.Error)
}

func TestListProjects_PagePastEnd(t *testing.T) {
	src := &fakeSource{state: service.State{Projects: projects(13)}}
	r := setupRouter(src)

	for _, page := range []string{"4", "9223372036854775807", "1537228672809129303"} {
		rr := do(t, r, http.MethodGet, "/api/v1/projects?page="+page)
		require.Equal(t, http.StatusOK, rr.Code, page)

		var body listBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.NotNil(t, body.Items, page)
		assert.Empty(t, body.Items, page)
		assert.Equal(t, 3, body.TotalPages, page)
	}
}

func TestListProjects_SearchQuery(t *testing.T) {
	src := &fakeSource{state: service.State{Projects: projects(3)}}
	r := setupRouter(src)

	rr := do(t, r, http.MethodGet, "/api/v1/projects?q=SITE-01&mode=name&page_size=2")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, aggregate.Query{Term: "SITE-01", Mode: aggregate.SearchName, Page: 1, PageSize: 2}, src.lastQuery)

	var body listBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "site-01", body.Items[0]["site-name"])
}

func TestListProjects_BadRequest(t *testing.T) {
	r := setupRouter(&fakeSource{})
	for _, target := range []string{
		"/api/v1/projects?mode=blob",
		"/api/v1/projects?page=0",
		"/api/v1/projects?page=abc",
		"/api/v1/projects?page_size=-1",
		"/api/v1/projects?page_size=500",
	} {
		rr := do(t, r, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestListProjects_LoadingAndEmpty(t *testing.T) {
	src := &fakeSource{state: service.State{
		Loading:  service.Loading{Fields: true},
		Projects: []domain.ProjectRecord{},
	}}
	r := setupRouter(src)

	rr := do(t, r, http.MethodGet, "/api/v1/projects")
	require.Equal(t, http.StatusOK, rr.Code)

	var body listBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, LoadingResponse{Fields: true, Any: true}, body.Loading)
	assert.NotNil(t, body.Items)
	assert.Empty(t, body.Items)
	assert.Nil(t, body.FetchedAt)
}

func TestListProjects_OwnedFailure(t *testing.T) {
	t.Run("nothing loaded is a bad gateway", func(t *testing.T) {
		src := &fakeSource{state: service.State{Err: errors.New("node down"), Projects: []domain.ProjectRecord{}}}
		rr := do(t, setupRouter(src), http.MethodGet, "/api/v1/projects")
		assert.Equal(t, http.StatusBadGateway, rr.Code)

		var body listBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "node down", body.Error)
	})

	t.Run("previous projects are still served", func(t *testing.T) {
		src := &fakeSource{state: service.State{Err: errors.New("node down"), Projects: projects(2)}}
		rr := do(t, setupRouter(src), http.MethodGet, "/api/v1/projects")
		assert.Equal(t, http.StatusOK, rr.Code)

		var body listBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "node down", body.Error)
		assert.Len(t, body.Items, 2)
	})
}

func TestListAllProjects(t *testing.T) {
	records := projects(2)
	records = append(records, domain.ProjectRecord{ID: 2, SiteName: "no-url"})
	src := &fakeSource{state: service.State{Projects: records}}

	rr := do(t, setupRouter(src), http.MethodGet, "/api/v1/projects/all")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Items []map[string]any `json:"items"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Len(t, body.Items, 3)
}

func TestRefetchProjects(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		src := &fakeSource{state: service.State{Projects: projects(4)}}
		rr := do(t, setupRouter(src), http.MethodPost, "/api/v1/projects/refetch")
		require.Equal(t, http.StatusOK, rr.Code)

		var body RefetchResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, RefetchResponse{Status: "refreshed", Count: 4}, body)
		assert.Equal(t, 1, src.refetches)
	})

	t.Run("failure", func(t *testing.T) {
		src := &fakeSource{refetchErr: errors.New("node down")}
		rr := do(t, setupRouter(src), http.MethodPost, "/api/v1/projects/refetch")
		require.Equal(t, http.StatusBadGateway, rr.Code)

		var body RefetchResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "failed", body.Status)
		assert.Equal(t, "node down", body.Error)
	})

	t.Run("get is not routed", func(t *testing.T) {
		rr := do(t, setupRouter(&fakeSource{}), http.MethodGet, "/api/v1/projects/refetch")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
