package server

import (
	"context"
	"net/http"
	"time"

	"anoa.com/schoolportal/internal/config"
	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/metrics"
	"anoa.com/schoolportal/pkg/validator"

	annHttp "anoa.com/schoolportal/internal/modules/announcement/delivery/http"
	authHttp "anoa.com/schoolportal/internal/modules/auth/delivery/http"
	commentHttp "anoa.com/schoolportal/internal/modules/comment/delivery/http"
	contactHttp "anoa.com/schoolportal/internal/modules/contact/delivery/http"
	msgHttp "anoa.com/schoolportal/internal/modules/message/delivery/http"
	notiHttp "anoa.com/schoolportal/internal/modules/notification/delivery/http"
	reactionHttp "anoa.com/schoolportal/internal/modules/reaction/delivery/http"
	studentHttp "anoa.com/schoolportal/internal/modules/student/delivery/http"
	userHttp "anoa.com/schoolportal/internal/modules/user/delivery/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth         *authHttp.AuthHandler
	Announcement *annHttp.AnnouncementHandler
	Reaction     *reactionHttp.ReactionHandler
	Comment      *commentHttp.CommentHandler
	Student      *studentHttp.StudentHandler
	User         *userHttp.UserHandler
	Message      *msgHttp.MessageHandler
	Contact      *contactHttp.ContactHandler
	Notification *notiHttp.NotificationHandler
}

// NewRouter mounts every route. health backs GET /healthz.
func NewRouter(cfg *config.Config, h Handlers, authMiddleware *middleware.AuthMiddleware, health func(context.Context) error, log *zap.Logger) (*gin.Engine, error) {
	if err := validator.Register(); err != nil {
		return nil, err
	}
	policy.DenialHook = middleware.CountDenials

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log, "/healthz", "/metrics"))
	router.Use(authMiddleware.Identify())

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")

	// Public routes; the services decide what an anonymous caller may see.
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
	}

	announcements := api.Group("/announcements")
	{
		announcements.GET("", h.Announcement.List)
		announcements.GET("/feed", h.Announcement.Feed)
		announcements.GET("/search", h.Announcement.Search)
		announcements.GET("/:id", h.Announcement.Get)
		announcements.GET("/:id/comments", h.Comment.List)
	}

	api.GET("/classes", h.Student.Classes)
	api.POST("/contact", h.Contact.Submit)

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/auth/me", h.Auth.Me)
		protected.GET("/auth/pending-approval", h.Auth.PendingApproval)

		protected.POST("/announcements", h.Announcement.Create)
		protected.PUT("/announcements/:id", h.Announcement.Update)
		protected.DELETE("/announcements/:id", h.Announcement.Delete)
		protected.PUT("/announcements/:id/pin", h.Announcement.SetPinned)
		protected.POST("/announcements/:id/image", h.Announcement.UploadImage)
		protected.GET("/announcements/:id/reactions", h.Announcement.ReactionDetails)
		protected.POST("/announcements/:id/react", h.Reaction.React)
		protected.POST("/announcements/:id/comments", h.Comment.Create)

		protected.PUT("/comments/:comment_id", h.Comment.Update)
		protected.DELETE("/comments/:comment_id", h.Comment.Delete)

		// Unapproved parents may submit children; everything else needs approval.
		protected.POST("/my-children", h.Student.Submit)
		children := protected.Group("/my-children")
		children.Use(middleware.Require(policy.ActionManageOwnChild))
		{
			children.GET("", h.Student.ListMine)
			children.PUT("/:id", h.Student.UpdateMine)
			children.DELETE("/:id", h.Student.DeleteMine)
		}

		messages := protected.Group("/messages")
		messages.Use(middleware.Require(policy.ActionMessage))
		{
			messages.GET("/conversations", h.Message.Conversations)
			messages.GET("/conversations/:user_id", h.Message.Open)
			messages.GET("/unread-count", h.Message.UnreadCount)
			messages.POST("", h.Message.Send)
			messages.DELETE("/:id", h.Message.Delete)
		}

		inbox := protected.Group("/contact-messages")
		inbox.Use(middleware.Require(policy.ActionContactInbox))
		{
			inbox.GET("", h.Contact.List)
			inbox.GET("/:id", h.Contact.Get)
			inbox.PUT("/:id/status", h.Contact.SetStatus)
			inbox.DELETE("/:id", h.Contact.Delete)
		}

		admin := protected.Group("/admin")
		{
			students := admin.Group("/students")
			students.Use(middleware.Require(policy.ActionManageStudents))
			{
				students.GET("", h.Student.List)
				students.GET("/pending", h.Student.Pending)
				students.GET("/export", h.Student.Export)
				students.GET("/:id", h.Student.Get)
				students.POST("", h.Student.Create)
				students.PUT("/:id", h.Student.Update)
				students.DELETE("/:id", h.Student.Delete)
				students.POST("/:id/decision", h.Student.Decide)
			}

			users := admin.Group("/users")
			users.Use(middleware.Require(policy.ActionManageAccounts))
			{
				users.GET("", h.User.GetAllUsers)
				users.GET("/:id", h.User.GetUser)
				users.POST("", h.User.CreateUser)
				users.PUT("/:id", h.User.UpdateUser)
				users.DELETE("/:id", h.User.DeleteUser)
				users.POST("/:id/approve", h.User.ApproveUser)
				users.POST("/bulk-email", h.User.BulkEmail)
			}

			notifications := admin.Group("/notifications")
			notifications.Use(middleware.Require(policy.ActionViewNotifications))
			{
				notifications.GET("", h.Notification.GetNotifications)
				notifications.GET("/unread-count", h.Notification.UnreadCount)
				notifications.PUT("/read-all", h.Notification.MarkAllAsRead)
				notifications.PUT("/:id/read", h.Notification.MarkAsRead)
				notifications.GET("/ws", h.Notification.HandleWebSocket)
			}
		}
	}

	return router, nil
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
