package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beadboard/beadboard/internal/bead"
	"github.com/beadboard/beadboard/internal/models"
	"github.com/beadboard/beadboard/internal/prcheck"
	"github.com/beadboard/beadboard/internal/store"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts.Store))

	api := router.Group("/api")
	api.GET("/beads", handleBeadList(opts.Store))
	api.GET("/beads/:id", handleBeadDetail(opts.Store))
	api.GET("/beads/:id/targets", handleTargets(opts.Store))
	api.POST("/beads/:id/transition", handleTransition(opts.Store))
	api.GET("/repair/scan", handleRepairScan(opts.Store))
	api.POST("/repair/apply", handleRepairApply(opts.Store))
	api.GET("/stale", handleStale(opts))
	api.GET("/stats", handleStats(opts))
	api.GET("/pr", handlePRCheck(opts.Checker))
	api.GET("/events", handleEvents(opts.Manager, opts.RetryMS))
}

func handleHealth(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		version, err := st.Version(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "data_version": version})
	}
}

// handleBeadList returns the board snapshot. Supports status and assignee
// filters; ?all=true includes tombstones for archaeology views.
func handleBeadList(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var beads []models.Bead
		var err error
		if c.Query("all") == "true" {
			beads, err = st.AllRecords(ctx)
		} else {
			beads, err = st.Snapshot(ctx)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		status := bead.NormalizeStatus(c.Query("status"))
		assignee := bead.NormalizeAssignee(c.Query("assignee"))
		if c.Query("status") != "" || assignee != "" {
			filtered := beads[:0:0]
			for _, b := range beads {
				if c.Query("status") != "" && bead.NormalizeStatus(b.Status) != status {
					continue
				}
				if assignee != "" && b.Assignee != assignee {
					continue
				}
				filtered = append(filtered, b)
			}
			beads = filtered
		}

		c.JSON(http.StatusOK, gin.H{"issues": beads, "count": len(beads)})
	}
}

func handleBeadDetail(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")

		b, err := st.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "bead not found", "id": id})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		deps, err := st.Dependencies(ctx, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		events, err := st.RecentEvents(ctx, id, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		detail := gin.H{
			"issue":        b,
			"dependencies": deps,
			"events":       events,
			"validation":   bead.ValidateBead(b),
		}
		if log, ok := bead.ParseExecutionLog(b.Notes); ok {
			detail["execution_log"] = log
		}
		c.JSON(http.StatusOK, detail)
	}
}

// targetInfo is one legal next status plus whether the UI should collect
// extra fields before submitting.
type targetInfo struct {
	Status        string `json:"status"`
	RequiresModal bool   `json:"requires_modal"`
}

func handleTargets(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		b, err := st.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "bead not found", "id": id})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		statuses := bead.ValidTargetStatuses(b.Status)
		targets := make([]targetInfo, len(statuses))
		for i, s := range statuses {
			targets[i] = targetInfo{
				Status:        s,
				RequiresModal: bead.TransitionRequiresModal(b.Status, s),
			}
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "status": b.Status, "targets": targets})
	}
}

// transitionRequest is the POST body for a status change.
type transitionRequest struct {
	Target string            `json:"target" binding:"required"`
	Fields map[string]string `json:"fields"`
}

func handleTransition(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		result, b, err := st.ApplyTransition(c.Request.Context(), id, req.Target, req.Fields)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "bead not found", "id": id})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !result.Valid {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"result": result, "issue": b})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": result, "issue": b})
	}
}

func handleRepairScan(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := st.ScanRepairs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func handleRepairApply(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := st.ApplyRepairs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func handleStale(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		findings, err := opts.Store.StaleFindings(c.Request.Context(), opts.Thresholds)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
	}
}

func handleStats(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		counts, err := opts.Store.StatusCounts(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		version, err := opts.Store.Version(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status_counts": counts,
			"data_version":  version,
			"connections":   opts.Manager.Stats(),
		})
	}
}

// handlePRCheck resolves a pull-request URL against GitHub on demand. The
// board calls this lazily when a review card is opened, never in bulk.
func handlePRCheck(checker *prcheck.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "pull request lookups not configured"})
			return
		}
		prURL := c.Query("url")
		if prURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
			return
		}

		status, err := checker.Check(c.Request.Context(), prURL)
		if err != nil {
			if errors.Is(err, prcheck.ErrUnsupportedHost) {
				c.JSON(http.StatusOK, gin.H{"supported": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"supported": true, "pr": status})
	}
}
