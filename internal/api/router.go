package api

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/NewsFlow/internal/manager"
	"github.com/LJTian/NewsFlow/internal/scheduler"
	"github.com/LJTian/NewsFlow/internal/storage"
)

type Server struct {
	store     storage.Store
	manager   *manager.Manager
	scheduler *scheduler.Scheduler
}

func NewServer(store storage.Store, m *manager.Manager, s *scheduler.Scheduler) *Server {
	return &Server{store: store, manager: m, scheduler: s}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.queryNews)
		v1.GET("/news/recent", s.recentNews)
		v1.GET("/stats", s.stats)
		v1.POST("/scraper/run", s.runScraper)
		v1.GET("/scheduler/status", s.schedulerStatus)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// queryNews 分頁查詢：?source=&q=&from=&to=&page=&per_page=
func (s *Server) queryNews(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if err != nil || perPage <= 0 {
		perPage = 20
	}

	result, err := s.store.Query(storage.QueryParams{
		Source:        c.Query("source"),
		TitleContains: c.Query("q"),
		From:          c.Query("from"),
		To:            c.Query("to"),
		Page:          page,
		PerPage:       perPage,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    result,
	})
}

func (s *Server) recentNews(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	list, err := s.store.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "success", "data": list})
}

func (s *Server) stats(c *gin.Context) {
	total, err := s.store.Count()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	bySource, err := s.store.CountBySource()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"total":   total,
			"sources": bySource,
		},
	})
}

// runScraper 手動觸發採集；帶 ?source= 只跑單一來源，否則整批。
// 背景執行，立即回 202；同一來源的執行由管理器的互斥鎖序列化。
func (s *Server) runScraper(c *gin.Context) {
	if source := c.Query("source"); source != "" {
		names := s.manager.Names()
		found := false
		for _, n := range names {
			if n == source {
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "unknown_source",
				"message": "unknown source: " + source,
				"data":    gin.H{"available": names},
			})
			return
		}
		// 背景執行要脫離請求生命週期，不能帶 request context
		go func() {
			if _, err := s.manager.RunOne(context.Background(), source); err != nil {
				log.Printf("%s: manual run failed: %v", source, err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"code": "ok", "message": "scrape started", "data": gin.H{"source": source}})
		return
	}

	s.scheduler.TriggerNow()
	c.JSON(http.StatusAccepted, gin.H{"code": "ok", "message": "scrape started"})
}

func (s *Server) schedulerStatus(c *gin.Context) {
	status := s.scheduler.Status()
	resp := gin.H{"status": status}
	if next := s.scheduler.NextRun(); !next.IsZero() {
		resp["nextRun"] = next
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "success", "data": resp})
}
