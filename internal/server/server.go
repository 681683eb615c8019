package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"anoa.com/schoolportal/internal/config"
	"anoa.com/schoolportal/internal/jobs"
	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/pkg/mailer"
	"anoa.com/schoolportal/pkg/ratelimiter"
	"anoa.com/schoolportal/pkg/storage"

	annHttp "anoa.com/schoolportal/internal/modules/announcement/delivery/http"
	annRepo "anoa.com/schoolportal/internal/modules/announcement/repository"
	annService "anoa.com/schoolportal/internal/modules/announcement/service"

	authHttp "anoa.com/schoolportal/internal/modules/auth/delivery/http"
	authService "anoa.com/schoolportal/internal/modules/auth/service"

	commentHttp "anoa.com/schoolportal/internal/modules/comment/delivery/http"
	commentRepo "anoa.com/schoolportal/internal/modules/comment/repository"
	commentService "anoa.com/schoolportal/internal/modules/comment/service"

	contactHttp "anoa.com/schoolportal/internal/modules/contact/delivery/http"
	contactRepo "anoa.com/schoolportal/internal/modules/contact/repository"
	contactService "anoa.com/schoolportal/internal/modules/contact/service"

	msgHttp "anoa.com/schoolportal/internal/modules/message/delivery/http"
	msgRepo "anoa.com/schoolportal/internal/modules/message/repository"
	msgService "anoa.com/schoolportal/internal/modules/message/service"

	notiHttp "anoa.com/schoolportal/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/schoolportal/internal/modules/notification/repository"
	notifService "anoa.com/schoolportal/internal/modules/notification/service"

	reactionHttp "anoa.com/schoolportal/internal/modules/reaction/delivery/http"
	reactionRepo "anoa.com/schoolportal/internal/modules/reaction/repository"
	reactionService "anoa.com/schoolportal/internal/modules/reaction/service"

	searchService "anoa.com/schoolportal/internal/modules/search/service"

	studentHttp "anoa.com/schoolportal/internal/modules/student/delivery/http"
	studentRepo "anoa.com/schoolportal/internal/modules/student/repository"
	studentService "anoa.com/schoolportal/internal/modules/student/service"

	userHttp "anoa.com/schoolportal/internal/modules/user/delivery/http"
	userRepo "anoa.com/schoolportal/internal/modules/user/repository"
	userService "anoa.com/schoolportal/internal/modules/user/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the external clients the server is built on. Redis, Index and
// Images may be nil; the features behind them degrade instead of failing.
type Dependencies struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Index  searchService.AnnouncementIndex
	Images storage.ImageStorage
	Mailer mailer.Mailer
	Log    *zap.Logger
}

type Server struct {
	engine    *gin.Engine
	http      *http.Server
	scheduler *jobs.Scheduler
	log       *zap.Logger
}

func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	db := deps.DB
	limiter := ratelimiter.New(deps.Redis)
	sessions := middleware.NewSessions(cfg.JWTSecret, cfg.JWTTTL, cfg.SessionCookie, cfg.IsProduction())

	users := userRepo.NewUserRepository(db)
	students := studentRepo.NewStudentRepository(db)
	announcements := annRepo.NewAnnouncementRepository(db)

	notificationSvc := notifService.NewNotificationService(notifRepo.NewNotificationRepository(db))
	dispatcher := notifService.NewDispatcher(notifService.NewRedisBroadcaster(deps.Redis), deps.Mailer, log.Named("notify"))

	annSvc := annService.NewAnnouncementService(announcements, students, students, deps.Index, deps.Images, log.Named("announcement"))
	reactionSvc := reactionService.NewReactionService(reactionRepo.NewReactionRepository(db), annSvc)
	commentSvc := commentService.NewCommentService(commentRepo.NewCommentRepository(db), annSvc)
	studentSvc := studentService.NewStudentService(students, users, dispatcher, limiter, cfg.RateLimitGuardian, log.Named("student"))
	userSvc := userService.NewUserService(users, deps.Mailer, cfg.AppName, log.Named("user"))
	authSvc := authService.NewAuthService(users, students, limiter, cfg.RateLimitLogin, log.Named("auth"))
	msgSvc := msgService.NewMessageService(msgRepo.NewMessageRepository(db), users)
	contactSvc := contactService.NewContactService(contactRepo.NewContactRepository(db), limiter, cfg.RateLimitContact, log.Named("contact"))

	handlers := Handlers{
		Auth:         authHttp.NewAuthHandler(authSvc, sessions),
		Announcement: annHttp.NewAnnouncementHandler(annSvc),
		Reaction:     reactionHttp.NewReactionHandler(reactionSvc),
		Comment:      commentHttp.NewCommentHandler(commentSvc),
		Student:      studentHttp.NewStudentHandler(studentSvc),
		User:         userHttp.NewUserHandler(userSvc),
		Message:      msgHttp.NewMessageHandler(msgSvc),
		Contact:      contactHttp.NewContactHandler(contactSvc),
		Notification: notiHttp.NewNotificationHandler(notificationSvc, deps.Redis, cfg.AllowedOrigins, log.Named("ws")),
	}

	router, err := NewRouter(cfg, handlers, middleware.NewAuthMiddleware(users, sessions), pingDB(db), log)
	if err != nil {
		return nil, err
	}

	scheduler := jobs.NewScheduler(log.Named("jobs"))
	if err := scheduler.Register(jobs.PurgeNotifications(notificationSvc, cfg.NotificationRetention, log)); err != nil {
		return nil, err
	}
	if deps.Index != nil {
		if err := scheduler.Register(jobs.ReindexAnnouncements(annSvc, log)); err != nil {
			return nil, err
		}
	}

	return &Server{
		engine:    router,
		scheduler: scheduler,
		log:       log,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run starts the scheduler and serves until Shutdown is called.
func (s *Server) Run() error {
	s.scheduler.Start()
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop(ctx)
	return s.http.Shutdown(ctx)
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
