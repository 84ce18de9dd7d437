package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"autorunner/internal/config"
	"autorunner/internal/core/jobstore"
	"autorunner/internal/core/runner"
	"autorunner/internal/core/screenshot"
	"autorunner/internal/logger"
	"autorunner/internal/platform/browser"
	rds "autorunner/internal/platform/redis"
	tasks "autorunner/internal/platform/tasks"
	"autorunner/internal/server"
	"autorunner/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log.Printf("[autorunner] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Asynq client and server. Worker concurrency caps simultaneous
	// browser sessions.
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{"default": 1},
	})

	// Core services
	jobStore, err := jobstore.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	shotSvc, err := screenshot.New(cfg, jobStore)
	if err != nil {
		log.Fatal(err)
	}
	runnerSvc := runner.New(cfg, jobStore, shotSvc, browser.NewLauncher(), taskClient)

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(runner.TaskTypeRun, runnerSvc.HandleTask)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Automation Runner",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	deps := server.Dependencies{
		Runner:    runnerSvc,
		Redis:     redisSvc,
		AuthToken: cfg.WorkerAuthToken,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready once services are up
	go func() {
		time.Sleep(2 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		_ = taskClient.Close()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
