// Package scheduler 週期性驅動整批採集。24 小時間隔錨定在每天凌晨 2 點，
// 其餘間隔從啟動起算固定週期；啟動時另外立刻跑一輪，不用等第一個間隔。
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/NewsFlow/internal/manager"
)

const (
	StatusRunning = "running"
	StatusStopped = "stopped"

	// anchorHour 24 小時間隔的首次觸發錨點（凌晨離峰時段）
	anchorHour = 2
	// failureCooldown 一輪執行出錯後的冷卻時間，冷卻完補跑一次
	failureCooldown = 5 * time.Minute
)

// CronSpec 依間隔時數產生 cron 規格。24 小時特別錨定在固定時刻：
// 當天尚未過 2 點則當天 2 點首跑，否則隔天 2 點；之後每輪間隔都是整整 24 小時。
// 其他間隔用 @every，首跑等一個間隔。
func CronSpec(intervalHours int) string {
	if intervalHours == 24 {
		return fmt.Sprintf("0 %d * * *", anchorHour)
	}
	return fmt.Sprintf("@every %dh", intervalHours)
}

// Scheduler 行程內唯一的排程驅動。Start / Stop / Status 皆可並發呼叫。
type Scheduler struct {
	manager  *manager.Manager
	cooldown time.Duration

	mu         sync.Mutex
	cron       *cron.Cron
	entry      cron.EntryID
	cancel     context.CancelFunc
	retryTimer *time.Timer
	running    bool

	// wg 追蹤 cron 之外的執行：啟動時的首輪與冷卻補跑，Stop 要等它們收尾
	wg sync.WaitGroup
}

func New(m *manager.Manager) *Scheduler {
	return &Scheduler{manager: m, cooldown: failureCooldown}
}

// Start 啟動排程；已在執行中則為 no-op。啟動後立即在背景跑一輪，
// 該輪的完成與否不影響 Start 回傳。
func (s *Scheduler) Start(intervalHours int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Println("scheduler already running")
		return nil
	}
	if intervalHours <= 0 {
		intervalHours = 24
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New()
	entry, err := c.AddFunc(CronSpec(intervalHours), func() { s.runJob(ctx) })
	if err != nil {
		cancel()
		return fmt.Errorf("add cron job: %w", err)
	}

	s.cron = c
	s.entry = entry
	s.cancel = cancel
	s.running = true
	c.Start()

	log.Printf("scheduler started, interval=%dh spec=%q", intervalHours, CronSpec(intervalHours))

	// fire-and-forget 的首輪採集：不等第一個間隔，失敗也只記錄
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(ctx)
	}()
	return nil
}

// runJob 跑一輪整批採集。任何逃逸的錯誤都收在這裡，冷卻後補跑一次；
// 單一來源的失敗永遠不會終結排程器本身。
func (s *Scheduler) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scrape run panicked: %v", r)
			s.armRetry(ctx)
		}
	}()

	log.Println("scheduled scrape run starting...")
	result := s.manager.RunAll(ctx)
	if errs := result.SourceErrors(); len(errs) > 0 {
		log.Printf("scrape run finished with %d source error(s): %v", len(errs), errs)
		s.armRetry(ctx)
		return
	}
	log.Printf("scheduled scrape run done, %s", result.Total)
}

// armRetry 冷卻後補跑一次；排程已停止或已有待跑的補跑則放棄
func (s *Scheduler) armRetry(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.retryTimer != nil {
		return
	}

	log.Printf("retrying in %s", s.cooldown)
	s.wg.Add(1)
	s.retryTimer = time.AfterFunc(s.cooldown, func() {
		defer s.wg.Done()
		s.mu.Lock()
		s.retryTimer = nil
		s.mu.Unlock()
		if ctx.Err() == nil {
			s.runJob(ctx)
		}
	})
}

// Stop 取消排程並等待進行中的那一輪結束；未啟動時為 no-op
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	cancel := s.cancel
	timer := s.retryTimer
	s.running = false
	s.cron = nil
	s.cancel = nil
	s.retryTimer = nil
	s.mu.Unlock()

	cancel()
	// 還沒觸發的補跑直接解除，已觸發的由 wg 等待
	if timer != nil && timer.Stop() {
		s.wg.Done()
	}
	// cron.Stop 回傳的 context 會在所有執行中的 job 結束後關閉
	<-c.Stop().Done()
	// 首輪與補跑不經過 cron，另外等
	s.wg.Wait()
	log.Println("scheduler stopped")
}

// Status 目前狀態，不阻塞
func (s *Scheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return StatusRunning
	}
	return StatusStopped
}

// NextRun 下一次排程觸發時間；未啟動時回傳零值
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// TriggerNow 手動觸發一輪整批採集（背景執行，不等結果）。來源級互斥鎖
// 保證同一來源不會與排程中的那一輪同時跑；排程未啟動時也可手動觸發。
func (s *Scheduler) TriggerNow() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("manual scrape run panicked: %v", r)
			}
		}()
		log.Println("manual scrape run starting...")
		result := s.manager.RunAll(context.Background())
		log.Printf("manual scrape run done, %s", result.Total)
	}()
}
