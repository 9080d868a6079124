package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/microtask-api/internal/constants"
	"github.com/yukikurage/microtask-api/internal/database"
	"github.com/yukikurage/microtask-api/internal/handlers"
	"github.com/yukikurage/microtask-api/internal/middleware"
	"github.com/yukikurage/microtask-api/internal/repository"
	"github.com/yukikurage/microtask-api/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily instance trigger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	gin.SetMode(cfg.GinMode)

	if err := connect(); err != nil {
		return err
	}

	// Initialize AI service
	var aiService *services.AIService
	if cfg.OpenAIAPIKey != "" {
		aiService = services.NewAIService(cfg.OpenAIAPIKey)
	}

	db := database.GetDB()
	repos := repository.NewRepositories(db)
	taskService := newTaskService(aiService)
	groupService := services.NewGroupService(repos.Groups, repos.Tasks)
	authService := services.NewAuthService(repos.Users)

	scheduler := services.NewSchedulerService(loc)
	if _, err := scheduler.ScheduleDailyMaterialization(cfg.DailyTriggerTime, taskService); err != nil {
		return fmt.Errorf("failed to schedule daily materialization: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.Default()

	// Setup session middleware with Redis
	store, err := redisStore.NewStore(
		10,                        // Redis pool size
		"tcp",                     // network type
		cfg.RedisAddr(),           // Redis address from config
		"",                        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		return fmt.Errorf("failed to create Redis store: %w", err)
	}
	isProduction := cfg.GinMode == gin.ReleaseMode
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	registerRoutes(r,
		handlers.NewAuthHandler(authService),
		handlers.NewGroupHandler(groupService, taskService, loc),
		handlers.NewTaskHandler(taskService, loc),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "timezone", loc.String(), "daily_trigger_time", cfg.DailyTriggerTime)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func registerRoutes(r *gin.Engine, authHandler *handlers.AuthHandler, groupHandler *handlers.GroupHandler, taskHandler *handlers.TaskHandler) {
	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Microtask API is running",
		})
	})

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		groups := api.Group("/groups")
		groups.Use(middleware.RequireAuth())
		{
			groups.POST("", groupHandler.CreateGroup)
			groups.GET("", groupHandler.ListGroups)
			groups.GET("/:id", groupHandler.GetGroup)
			groups.PATCH("/:id", groupHandler.UpdateGroup)
			groups.DELETE("/:id", groupHandler.DeleteGroup)
			groups.POST("/:id/tasks", groupHandler.CreateTask)
			groups.POST("/:id/tasks/suggest", groupHandler.SuggestTasks)
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.POST("/:id/start", taskHandler.StartTask)
		}

		instances := api.Group("/instances")
		instances.Use(middleware.RequireAuth())
		{
			instances.GET("/day", taskHandler.GetDayInstances)
			instances.GET("/one-time", taskHandler.GetOneTimeInstances)
			instances.GET("/routine", taskHandler.GetRoutineInstances)
			instances.POST("/:id/success", taskHandler.SucceedInstance)
			instances.POST("/:id/fail", taskHandler.FailInstance)
		}
	}
}
