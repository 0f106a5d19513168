package storage

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// NewsRecord 入庫後的一筆新聞。(Source, SourceID) 為全域唯一鍵，
// 由資料庫層的複合唯一索引做最終保證。
type NewsRecord struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Source      string            `gorm:"size:32;uniqueIndex:idx_source_news_id;index" json:"source"`
	SourceID    string            `gorm:"size:128;uniqueIndex:idx_source_news_id" json:"sourceId"`
	Title       string            `gorm:"size:512" json:"title"`
	Author      string            `gorm:"size:128" json:"author"`
	URL         string            `gorm:"size:1024" json:"url"`
	PublishTime string            `gorm:"size:32;index" json:"publishTime"` // 標準格式 YYYY-MM-DD HH:MM:SS
	Extra       datatypes.JSONMap `gorm:"type:jsonb" json:"extra"`

	CreatedAt time.Time `json:"ingestTime"`
}

// SourceCount 單一來源的入庫筆數
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// QueryParams 查詢條件；Source / TitleContains / From / To 皆可留空。
// From / To 為 publish_time 的字串區間（含端點），格式同 PublishTime。
type QueryParams struct {
	Source        string
	TitleContains string
	From          string
	To            string
	Page          int
	PerPage       int
}

// QueryResult 分頁查詢結果
type QueryResult struct {
	Data    []NewsRecord `json:"data"`
	Total   int64        `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"perPage"`
	Pages   int          `json:"pages"`
}

// ErrUnavailable 代表存儲層連線層級的失敗（而非單筆寫入衝突）。
// 管線收到這類錯誤會中止整輪採集，交由排程器冷卻後重試。
var ErrUnavailable = errors.New("storage unavailable")

// Store 持久層抽象。InsertOne 回傳 false 表示 (source, id) 已存在；
// InsertBatch 寫入前會先對既有資料去重，回傳實際新增筆數。
type Store interface {
	Exists(source, sourceID string) (bool, error)
	InsertOne(rec *NewsRecord) (bool, error)
	InsertBatch(recs []*NewsRecord) (int, error)

	Count() (int64, error)
	CountBySource() ([]SourceCount, error)
	Recent(limit int) ([]NewsRecord, error)
	Query(q QueryParams) (*QueryResult, error)
}
