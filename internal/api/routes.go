package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/forensics-engine/internal/db"
	"github.com/rawblock/forensics-engine/internal/engine"
	"github.com/rawblock/forensics-engine/internal/parse"
)

// maxUploadBytes caps CSV uploads. The row limit is enforced again by the
// parser; this guard just stops oversized bodies before they are buffered.
const maxUploadBytes = 16 << 20

var (
	errEmptyUpload = errors.New("empty upload body")
	errNotCSV      = errors.New("only .csv files are accepted")
)

type APIHandler struct {
	dbStore *db.PostgresStore
	engine  *engine.Engine
	wsHub   *Hub
}

func SetupRouter(eng *engine.Engine, dbStore *db.PostgresStore, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://console.example.com
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Every request gets an ID so logs from one analysis run can be
	// correlated across middleware and handlers.
	r.Use(func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	})

	handler := &APIHandler{dbStore: dbStore, engine: eng, wsHub: wsHub}

	limiter := NewRateLimiter(30, 10)

	api := r.Group("/api/v1")
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)
		api.GET("/runs/:id", handler.handleRunProgress)

		protected := api.Group("")
		protected.Use(AuthMiddleware(), limiter.Middleware())
		{
			protected.POST("/analyze", handler.handleAnalyzeCSV)
			protected.POST("/analyze/db", handler.handleAnalyzeDB)
			protected.POST("/stage", handler.handleStageCSV)
		}
	}

	return r
}

// handleAnalyzeCSV runs a full analysis over an uploaded CSV. The file can
// arrive either as a multipart form field named "file" or as a raw body
// with Content-Type text/csv.
func (h *APIHandler) handleAnalyzeCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	raw, err := readCSVUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.engine.Config()
	txs, stats, err := parse.CSV(raw, cfg.MaxRows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV rejected", "details": err.Error()})
		return
	}
	if len(txs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid transactions in upload", "parse_stats": stats})
		return
	}

	result, err := h.engine.Analyze(c.Request.Context(), txs, &stats)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleAnalyzeDB runs a full analysis over transfers previously staged
// in PostgreSQL.
func (h *APIHandler) handleAnalyzeDB(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	cfg := h.engine.Config()
	txs, stats, err := h.dbStore.LoadTransactions(c.Request.Context(), cfg.MaxRows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load staged transactions", "details": err.Error()})
		return
	}
	if len(txs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid transactions staged", "parse_stats": stats})
		return
	}

	result, err := h.engine.Analyze(c.Request.Context(), txs, &stats)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleStageCSV parses an uploaded CSV and bulk-loads the valid rows into
// the PostgreSQL staging table for a later /analyze/db run.
func (h *APIHandler) handleStageCSV(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	raw, err := readCSVUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.engine.Config()
	txs, stats, err := parse.CSV(raw, cfg.MaxRows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV rejected", "details": err.Error()})
		return
	}
	if len(txs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid transactions in upload", "parse_stats": stats})
		return
	}

	if err := h.dbStore.StageTransactions(c.Request.Context(), txs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "staging failed", "details": err.Error()})
		return
	}
	log.Printf("[API] staged %d transactions", len(txs))
	c.JSON(http.StatusOK, gin.H{"staged": len(txs), "parse_stats": stats})
}

// handleRunProgress reports the live state of a run by its ID.
func (h *APIHandler) handleRunProgress(c *gin.Context) {
	id := c.Param("id")
	progress, ok := h.engine.Progress(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run", "run_id": id})
		return
	}
	c.JSON(http.StatusOK, progress)
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	dbConnected := h.dbStore != nil
	cfg := h.engine.Config()

	staged := 0
	if dbConnected {
		if n, err := h.dbStore.StagedCount(c.Request.Context()); err == nil {
			staged = n
		} else {
			log.Printf("[API] staged count failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "Forensics Engine v1.0",
		"capabilities": gin.H{
			"cycle_detection":     true,
			"fan_detection":       true,
			"shell_chains":        true,
			"round_trips":         true,
			"amount_anomalies":    true,
			"rapid_movement":      true,
			"structuring":         true,
			"community_detection": true,
			"temporal_profiles":   true,
		},
		"limits": gin.H{
			"max_rows":       cfg.MaxRows,
			"max_cycles":     cfg.MaxCycles,
			"max_upload_mib": maxUploadBytes >> 20,
		},
		"dbConnected":         dbConnected,
		"staged_transactions": staged,
	})
}

func readCSVUpload(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		if !strings.HasSuffix(strings.ToLower(file.Filename), ".csv") {
			return nil, errNotCSV
		}
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("[API] upload read failed: %v", err)
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errEmptyUpload
	}
	return raw, nil
}
