// Package manager 管理所有啟用的來源爬蟲，對外提供整批與單一來源的執行入口。
package manager

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LJTian/NewsFlow/internal/pipeline"
	"github.com/LJTian/NewsFlow/internal/scraper"
)

// RunResult 一輪整批執行的結果：各來源統計 / 錯誤，與彙總
type RunResult struct {
	PerSource map[string]*pipeline.Stats `json:"perSource"`
	Errors    map[string]string          `json:"errors,omitempty"`
	Total     pipeline.Stats             `json:"total"`
}

// Manager 名稱 → 爬蟲的註冊表。各來源 ID 空間彼此獨立，可以並行採集；
// 同一來源用互斥鎖序列化，手動觸發不會跟排程中的那一輪重疊。
type Manager struct {
	pipeline      *pipeline.Pipeline
	opts          pipeline.Options
	maxConcurrent int

	mu       sync.Mutex
	adapters map[string]scraper.SourceAdapter
	locks    map[string]*sync.Mutex
	order    []string
}

func New(p *pipeline.Pipeline, opts pipeline.Options, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Manager{
		pipeline:      p,
		opts:          opts,
		maxConcurrent: maxConcurrent,
		adapters:      make(map[string]scraper.SourceAdapter),
		locks:         make(map[string]*sync.Mutex),
	}
}

func (m *Manager) Register(a scraper.SourceAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := a.Name()
	if _, ok := m.adapters[name]; !ok {
		m.order = append(m.order, name)
	}
	m.adapters[name] = a
	m.locks[name] = &sync.Mutex{}
}

// Names 已註冊的來源名稱（註冊順序）
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// RunOne 對單一來源跑一輪採集；同來源的執行互斥
func (m *Manager) RunOne(ctx context.Context, name string) (*pipeline.Stats, error) {
	m.mu.Lock()
	adapter, ok := m.adapters[name]
	lock := m.locks[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown source: %q (available: %v)", name, m.Names())
	}

	lock.Lock()
	defer lock.Unlock()
	return m.pipeline.Run(ctx, adapter, m.opts)
}

// RunAll 並行跑所有來源並彙總統計。單一來源失敗只記進結果，
// 不影響其他來源，也不會讓整輪報錯。
func (m *Manager) RunAll(ctx context.Context) *RunResult {
	names := m.Names()
	result := &RunResult{
		PerSource: make(map[string]*pipeline.Stats, len(names)),
		Errors:    make(map[string]string),
	}

	var resMu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(m.maxConcurrent)

	for _, name := range names {
		name := name
		g.Go(func() error {
			stats, err := m.RunOne(ctx, name)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				log.Printf("%s: run failed: %v", name, err)
				result.Errors[name] = err.Error()
				if stats != nil {
					result.PerSource[name] = stats
					result.Total.Add(*stats)
				}
				return nil
			}
			result.PerSource[name] = stats
			result.Total.Add(*stats)
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	log.Printf("all sources done, %s", result.Total)
	return result
}

// SourceErrors 排序後的錯誤摘要，日誌用
func (r *RunResult) SourceErrors() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Errors))
	for name, msg := range r.Errors {
		out = append(out, name+": "+msg)
	}
	sort.Strings(out)
	return out
}
