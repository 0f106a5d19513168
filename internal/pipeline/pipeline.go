// Package pipeline 實作通用的新聞採集管線：
// 列表枚舉 → 去重 → 詳情抓取 → 欄位正規化 → 批量入庫。
// 站點差異全部收在 SourceAdapter 裡，這裡只有一份編排邏輯。
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/LJTian/NewsFlow/internal/scraper"
	"github.com/LJTian/NewsFlow/internal/storage"
)

// PageFetcher 列表頁抓取能力；正式環境由 scraper.Client 提供
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Stats 單輪採集的統計，執行結束後回傳給呼叫端，不落庫
type Stats struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Add 累加另一份統計（管理器彙總用）
func (s *Stats) Add(o Stats) {
	s.Total += o.Total
	s.New += o.New
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

func (s Stats) String() string {
	return fmt.Sprintf("total=%d new=%d skipped=%d failed=%d", s.Total, s.New, s.Skipped, s.Failed)
}

// Options 單輪採集參數
type Options struct {
	MaxPages     int
	SkipExisting bool
	// MaxConsecutiveDuplicates 連續撞到已存在新聞達此數即提前收工，
	// 避免在已採過的列表上浪費詳情請求；0 表示不限制
	MaxConsecutiveDuplicates int
}

// Pipeline 對單一來源執行一輪完整採集
type Pipeline struct {
	store   storage.Store
	fetcher PageFetcher
}

func New(store storage.Store, fetcher PageFetcher) *Pipeline {
	return &Pipeline{store: store, fetcher: fetcher}
}

// Run 執行一輪採集。對同一個不變的遠端列表重跑，第二輪 new 必為 0；
// 詳情請求數受「枚舉時不在庫中的條數」限制。
// 只有存儲層不可用會讓整輪中止並回傳錯誤；單條失敗都就地吸收進統計。
func (p *Pipeline) Run(ctx context.Context, adapter scraper.SourceAdapter, opts Options) (*Stats, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}

	name := adapter.Name()
	stats := &Stats{}
	var pending []*storage.NewsRecord
	pendingKeys := make(map[string]struct{})
	consecutiveDups := 0
	stop := false

	log.Printf("%s: start crawl, max %d pages", name, opts.MaxPages)

	for page := 1; page <= opts.MaxPages && !stop; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL := adapter.BuildPageURL(page)
		content, err := p.fetcher.FetchPage(ctx, pageURL)
		if err != nil {
			// 重試已在抓取器內做完，整頁跳過，換下一頁
			log.Printf("%s: fetch page %d failed: %v", name, page, err)
			continue
		}

		items := adapter.ParseList(content)
		log.Printf("%s: page %d, %d items", name, page, len(items))

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Total++

			if item.URL == "" {
				stats.Failed++
				continue
			}

			switch adapter.ShouldProcess(scraper.Candidate{
				Title:       item.Title,
				URL:         item.URL,
				PublishTime: item.RawPublishTime,
			}) {
			case scraper.Reject:
				stats.Skipped++
				continue
			case scraper.RejectAndStop:
				stats.Skipped++
				stop = true
			}
			if stop {
				break
			}

			id := adapter.ExtractID(item.URL)

			if opts.SkipExisting {
				exists, err := p.store.Exists(name, id)
				if err != nil {
					return stats, fmt.Errorf("%s: check exists %s: %w", name, id, err)
				}
				if exists {
					stats.Skipped++
					consecutiveDups++
					if opts.MaxConsecutiveDuplicates > 0 && consecutiveDups >= opts.MaxConsecutiveDuplicates {
						log.Printf("%s: %d consecutive known items, stopping early", name, consecutiveDups)
						stop = true
					}
					if stop {
						break
					}
					continue
				}
				consecutiveDups = 0
			}

			detail, err := adapter.ParseDetail(ctx, item.URL)
			if err != nil {
				log.Printf("%s: fetch detail %s failed: %v", name, id, err)
				stats.Failed++
				continue
			}

			rec := adapter.Normalize(item, *detail)

			// 列表階段的資訊可能不全，正規化後再判斷一次取捨
			switch adapter.ShouldProcess(scraper.Candidate{
				Title:       rec.Title,
				URL:         rec.URL,
				PublishTime: rec.PublishTime,
			}) {
			case scraper.Reject:
				stats.Skipped++
				continue
			case scraper.RejectAndStop:
				stats.Skipped++
				stop = true
			}
			if stop {
				break
			}

			// 同一輪內撞到相同 (source, id) 只保留第一條
			key := rec.Source + "\x00" + rec.SourceID
			if _, ok := pendingKeys[key]; ok {
				stats.Skipped++
				continue
			}
			pendingKeys[key] = struct{}{}
			pending = append(pending, rec)
		}
	}

	p.flush(name, pending, stats)
	log.Printf("%s: crawl done, %s", name, stats)
	return stats, nil
}

// flush 批量入庫；InsertBatch 會再對庫內既有資料去重一次，
// 堵住枚舉到入庫之間別的執行緒先寫入的競態。整批失敗時逐筆回退，
// 讓能寫的照樣寫進去，統計各自獨立計算。
func (p *Pipeline) flush(name string, pending []*storage.NewsRecord, stats *Stats) {
	if len(pending) == 0 {
		return
	}

	inserted, err := p.store.InsertBatch(pending)
	if err == nil {
		stats.New += inserted
		stats.Skipped += len(pending) - inserted
		return
	}

	log.Printf("%s: batch insert failed (%v), falling back to per-record insert", name, err)
	for _, rec := range pending {
		ok, ierr := p.store.InsertOne(rec)
		switch {
		case ierr != nil:
			stats.Failed++
		case ok:
			stats.New++
		default:
			stats.Skipped++
		}
	}
}
