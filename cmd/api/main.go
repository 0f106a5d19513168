package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/NewsFlow/internal/api"
	"github.com/LJTian/NewsFlow/internal/config"
	"github.com/LJTian/NewsFlow/internal/manager"
	"github.com/LJTian/NewsFlow/internal/pipeline"
	"github.com/LJTian/NewsFlow/internal/scheduler"
	"github.com/LJTian/NewsFlow/internal/scraper"
	"github.com/LJTian/NewsFlow/internal/storage"
)

func main() {
	cfg := config.Load()

	store, err := storage.New(storage.Options{
		Driver:      cfg.DatabaseType,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		RedisAddr:   cfg.RedisAddr,
	})
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	client := scraper.NewClient(cfg.RequestTimeout, cfg.RetryAttempts, cfg.DelayMin, cfg.DelayMax)
	p := pipeline.New(store, client)

	m := manager.New(p, pipeline.Options{
		MaxPages:                 cfg.MaxPages,
		SkipExisting:             true,
		MaxConsecutiveDuplicates: cfg.MaxConsecutiveDuplicates,
	}, cfg.MaxConcurrentScrapers)

	for _, name := range cfg.EnabledSources {
		switch name {
		case "SETN":
			m.Register(scraper.NewSETN(client))
		case "LTN":
			m.Register(scraper.NewLTN(client))
		case "TVBS":
			m.Register(scraper.NewTVBS(client))
		case "ChinaTimes":
			m.Register(scraper.NewChinaTimes(client))
		default:
			log.Printf("warn: unknown source %q in config, skipped", name)
		}
	}
	log.Printf("registered %d sources: %v", len(m.Names()), m.Names())

	sched := scheduler.New(m)
	if err := sched.Start(cfg.SchedulerIntervalHours); err != nil {
		log.Fatalf("start scheduler failed: %v", err)
	}

	r := gin.Default()
	apiServer := api.NewServer(store, m, sched)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Printf("starting api server at %s ...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	// 等待關機訊號：先停排程（等進行中的那一輪收尾），再關 HTTP
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	log.Println("bye")
}
