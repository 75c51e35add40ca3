package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/gym-backoffice-api/internal/middleware"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/internal/service"
)

// RouterDeps bundles everything Register needs to mount the API.
type RouterDeps struct {
	Prefix string
	Logger *zap.Logger
	// Auth is nil when authentication is disabled.
	Auth    middleware.TokenValidator
	Metrics *service.MetricsService

	Offerings   *OfferingHandler
	Enrollments *EnrollmentHandler
	Rosters     *RosterHandler
	Billing     *BillingHandler
	Ops         *MetricsHandler
}

var (
	readRoles   = []models.UserRole{models.RoleAdmin, models.RoleStaff, models.RoleInstructor}
	manageRoles = []models.UserRole{models.RoleAdmin, models.RoleStaff}
	attendRoles = readRoles
	billRoles   = []models.UserRole{models.RoleAdmin}
)

// Register mounts operational endpoints at the root and the business API under deps.Prefix.
func Register(r *gin.Engine, deps RouterDeps) {
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Ops.Health)
	r.GET("/ready", deps.Ops.Ready)
	r.GET("/metrics", deps.Ops.Prometheus)

	api := r.Group(deps.Prefix)
	if deps.Auth != nil {
		api.Use(middleware.JWT(deps.Auth))
	}

	guard := func(roles []models.UserRole) gin.HandlerFunc {
		if deps.Auth == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RequireRoles(roles...)
	}
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.Logger, action, resource)
	}

	offerings := api.Group("/offerings")
	{
		offerings.GET("", guard(readRoles), deps.Offerings.List)
		offerings.GET("/export", guard(readRoles), deps.Offerings.Export)
		offerings.POST("", guard(manageRoles), audit("create", "offering"), deps.Offerings.Create)
		offerings.GET("/:id", guard(readRoles), deps.Offerings.Get)
		offerings.PUT("/:id", guard(manageRoles), audit("update", "offering"), deps.Offerings.Update)
		offerings.POST("/:id/toggle", guard(manageRoles), audit("toggle", "offering"), deps.Offerings.Toggle)
		offerings.GET("/:id/occupancy", guard(readRoles), deps.Offerings.Occupancy)
		offerings.GET("/:id/participants", guard(readRoles), deps.Enrollments.Participants)
		offerings.GET("/:id/enrollments", guard(readRoles), deps.Enrollments.ListByOffering)
		offerings.GET("/:id/rosters", guard(readRoles), deps.Rosters.ListByOffering)
		offerings.POST("/:id/rosters/generate", guard(manageRoles), audit("generate", "roster"), deps.Rosters.Generate)
	}

	enrollments := api.Group("/enrollments")
	{
		enrollments.POST("", guard(manageRoles), audit("create", "enrollment"), deps.Enrollments.Enroll)
		enrollments.GET("/:id", guard(readRoles), deps.Enrollments.Get)
		enrollments.POST("/:id/end", guard(manageRoles), audit("end", "enrollment"), deps.Enrollments.End)
	}

	rosters := api.Group("/rosters")
	{
		rosters.POST("", guard(attendRoles), audit("create", "roster"), deps.Rosters.Create)
		rosters.GET("/:id", guard(readRoles), deps.Rosters.Open)
		rosters.POST("/:id/sync", guard(attendRoles), audit("sync", "roster"), deps.Rosters.Sync)
		rosters.PUT("/:id/marks", guard(attendRoles), audit("mark", "roster"), deps.Rosters.Mark)
		rosters.POST("/:id/mark-all", guard(attendRoles), audit("mark_all", "roster"), deps.Rosters.MarkAll)
		rosters.GET("/:id/export", guard(readRoles), deps.Rosters.Export)
	}

	billing := api.Group("/billing")
	{
		billing.POST("/monthly", guard(billRoles), audit("run", "billing"), deps.Billing.RunMonthly)
		billing.GET("/charges", guard(manageRoles), deps.Billing.ListCharges)
	}
}
