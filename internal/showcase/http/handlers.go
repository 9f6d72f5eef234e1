package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ivory-showcase/showcase-backend/internal/logging"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/aggregate"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/service"
	"go.uber.org/zap"
)

// ListProjects returns one page of the searched and deduplicated showcase
func (h *Handler) ListProjects(c *gin.Context) {
	mode, err := aggregate.ParseSearchMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be one of all, name, owner"})
		return
	}
	page, ok := positiveQuery(c, "page", 1)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	pageSize, ok := positiveQuery(c, "page_size", aggregate.DefaultPageSize)
	if !ok || pageSize > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be between 1 and " + strconv.Itoa(maxPageSize)})
		return
	}

	result, st := h.source.List(c.Request.Context(), aggregate.Query{
		Term:     c.Query("q"),
		Mode:     mode,
		Page:     page,
		PageSize: pageSize,
	})

	c.JSON(statusOf(st), ListResponse{
		Loading:    loadingOf(st),
		Error:      errorOf(st),
		Items:      result.Items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages,
		FetchedAt:  fetchedAtOf(st),
	})
}

// ListAllProjects returns every normalized record before aggregation
func (h *Handler) ListAllProjects(c *gin.Context) {
	st := h.source.Snapshot(c.Request.Context())
	c.JSON(statusOf(st), AllResponse{
		Loading:   loadingOf(st),
		Error:     errorOf(st),
		Items:     st.Projects,
		Count:     len(st.Projects),
		FetchedAt: fetchedAtOf(st),
	})
}

// RefetchProjects reruns the cascade from the owned objects and waits for it.
// If the request ends first the run carries on in the background.
func (h *Handler) RefetchProjects(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx, h.logger)

	select {
	case err := <-h.source.Refetch(ctx):
		st := h.source.Snapshot(ctx)
		if err != nil {
			logger.Warn("refetch failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, RefetchResponse{Status: "failed", Count: len(st.Projects), Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, RefetchResponse{Status: "refreshed", Count: len(st.Projects)})
	case <-ctx.Done():
		logger.Info("refetch still running after request ended")
		c.JSON(http.StatusAccepted, RefetchResponse{Status: "refreshing"})
	}
}

// statusOf is 502 only when the owned-objects stage failed and there is
// nothing loaded to show instead.
func statusOf(st service.State) int {
	if st.Err != nil && len(st.Projects) == 0 {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

func positiveQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
