package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries everything the HTTP surface is built from
type RouterConfig struct {
	Logger        *zap.Logger
	Authenticator Authenticator
	Auth          *AuthHandler
	Leads         *LeadHandler
	Files         *FileHandler
	Deletions     *DeletionRequestHandler

	// StaticPrefix and StaticDir serve the local blob backend. Both empty disables it.
	StaticPrefix string
	StaticDir    string
}

// NewRouter builds the gin engine with middleware and every API route
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(cfg.Logger), RequestLogger(cfg.Logger), Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.StaticPrefix != "" && cfg.StaticDir != "" {
		r.Static(cfg.StaticPrefix, cfg.StaticDir)
	}

	api := r.Group("/api")
	api.POST("/auth/login", cfg.Auth.Login)

	authed := api.Group("", RequireAuth(cfg.Authenticator))
	{
		// Lead endpoints
		authed.GET("/leads", cfg.Leads.ListLeads)
		authed.POST("/leads", cfg.Leads.CreateLead)
		authed.GET("/leads/:id", cfg.Leads.GetLead)
		authed.DELETE("/leads/:id", RequireAdmin(), cfg.Leads.DeleteLead)
		authed.POST("/leads/:id/notes", cfg.Leads.AddNote)
		authed.GET("/leads/:id/activities", cfg.Leads.ListActivities)
		authed.GET("/leads/:id/files", cfg.Files.ListLeadFiles)

		// File endpoints
		authed.POST("/files/upload-dual", cfg.Files.UploadDual)
		authed.POST("/files/chat-upload", cfg.Files.ChatUpload)
		authed.GET("/files/url/:id", cfg.Files.GetFileURL)
		authed.DELETE("/files/:id", cfg.Files.DeleteFile)
		authed.POST("/files/:id/sync", cfg.Files.SyncFile)

		// Deletion workflow endpoints
		authed.GET("/deletion-requests", RequireAdmin(), cfg.Deletions.ListPending)
		authed.POST("/deletion-requests", cfg.Deletions.Create)
		authed.POST("/deletion-requests/:id/approve", cfg.Deletions.Approve)
		authed.POST("/deletion-requests/:id/reject", cfg.Deletions.Reject)
	}

	return r
}
