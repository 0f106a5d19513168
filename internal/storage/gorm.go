package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Options 存儲層建構參數，由 config 層填入
type Options struct {
	Driver      string // sqlite / postgres / memory
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string // 可為空，留空則不啟用查詢快取
}

// New 依設定選擇存儲實作
func New(opts Options) (Store, error) {
	switch opts.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres", "":
		return NewGormStore(opts)
	default:
		return nil, fmt.Errorf("unknown database type: %q", opts.Driver)
	}
}

// GormStore 基於 GORM 的存儲實作，查詢端可選配 Redis 快取
type GormStore struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewGormStore(opts Options) (*GormStore, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres":
		dialector = postgres.Open(opts.PostgresDSN)
	default:
		path := opts.SQLitePath
		if path == "" {
			path = "./news.db"
		}
		dialector = sqlite.Open(path)
	}

	// TranslateError: 讓唯一索引衝突在各 driver 下都映射成 gorm.ErrDuplicatedKey
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&NewsRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &GormStore{DB: db}

	if opts.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// 快取只是加速查詢，連不上就退化為純 DB，不阻止啟動
			log.Printf("warn: redis ping failed: %v", err)
		}
		s.Redis = rdb
	}

	return s, nil
}

// toValidUTF8 將字串規範為合法 UTF-8，避免 PostgreSQL invalid byte sequence 錯誤
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 數截斷，保證不會超過資料庫欄位長度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func sanitizeRecord(rec *NewsRecord) {
	rec.Title = truncateRunesDB(toValidUTF8(rec.Title), 512)
	rec.Author = truncateRunesDB(toValidUTF8(rec.Author), 128)
}

func (s *GormStore) Exists(source, sourceID string) (bool, error) {
	var n int64
	err := s.DB.Model(&NewsRecord{}).
		Where("source = ? AND source_id = ?", source, sourceID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("%w: exists: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// InsertOne 寫入單筆；(source, id) 已存在時回傳 false 而非錯誤
func (s *GormStore) InsertOne(rec *NewsRecord) (bool, error) {
	sanitizeRecord(rec)
	if err := s.DB.Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("%w: insert: %v", ErrUnavailable, err)
	}
	return true, nil
}

// InsertBatch 批量寫入，先對庫內既有資料與批次內重複做過濾，回傳實際新增筆數。
// 過濾與寫入之間若仍撞上唯一索引（並發採集的競態），視為已存在跳過。
func (s *GormStore) InsertBatch(recs []*NewsRecord) (int, error) {
	inserted := 0
	seen := make(map[string]struct{}, len(recs))

	for _, rec := range recs {
		key := rec.Source + "\x00" + rec.SourceID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		exists, err := s.Exists(rec.Source, rec.SourceID)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}

		sanitizeRecord(rec)
		if err := s.DB.Create(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return inserted, fmt.Errorf("%w: insert batch: %v", ErrUnavailable, err)
		}
		inserted++
	}

	return inserted, nil
}

func (s *GormStore) Count() (int64, error) {
	var n int64
	if err := s.DB.Model(&NewsRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	return n, nil
}

const queryCacheTTL = 5 * time.Minute

func (s *GormStore) CountBySource() ([]SourceCount, error) {
	ctx := context.Background()
	cacheKey := "news:count_by_source"

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []SourceCount
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var rows []SourceCount
	err := s.DB.Model(&NewsRecord{}).
		Select("source, COUNT(*) AS count").
		Group("source").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: count by source: %v", ErrUnavailable, err)
	}

	if s.Redis != nil && len(rows) > 0 {
		if bs, err := json.Marshal(rows); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, queryCacheTTL).Err()
		}
	}
	return rows, nil
}

func (s *GormStore) Recent(limit int) ([]NewsRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("news:recent:%d", limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []NewsRecord
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []NewsRecord
	err := s.DB.Order("created_at DESC").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("%w: recent: %v", ErrUnavailable, err)
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, queryCacheTTL).Err()
		}
	}
	return list, nil
}

// Query 分頁查詢；快取鍵包含全部條件，靠短 TTL 自然過期，不做通配刪除
func (s *GormStore) Query(q QueryParams) (*QueryResult, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 || q.PerPage > 100 {
		q.PerPage = 20
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("news:query:%s:%s:%s:%s:%d:%d",
		q.Source, q.TitleContains, q.From, q.To, q.Page, q.PerPage)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached QueryResult
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	db := s.DB.Model(&NewsRecord{})
	if q.Source != "" {
		db = db.Where("source = ?", q.Source)
	}
	if q.TitleContains != "" {
		db = db.Where("title LIKE ?", "%"+q.TitleContains+"%")
	}
	if q.From != "" {
		db = db.Where("publish_time >= ?", q.From)
	}
	if q.To != "" {
		db = db.Where("publish_time <= ?", q.To)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: query count: %v", ErrUnavailable, err)
	}

	var list []NewsRecord
	offset := (q.Page - 1) * q.PerPage
	err := db.Order("publish_time DESC").Offset(offset).Limit(q.PerPage).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}

	result := &QueryResult{
		Data:    list,
		Total:   total,
		Page:    q.Page,
		PerPage: q.PerPage,
		Pages:   int((total + int64(q.PerPage) - 1) / int64(q.PerPage)),
	}

	if s.Redis != nil {
		if bs, err := json.Marshal(result); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, queryCacheTTL).Err()
		}
	}
	return result, nil
}
