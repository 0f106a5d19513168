package scraper

import (
	"context"
	"crypto/sha1"
	"encoding/hex"

	"github.com/LJTian/NewsFlow/internal/storage"
)

// Decision 管線對單條新聞的取捨
type Decision int

const (
	// Accept 正常處理
	Accept Decision = iota
	// Reject 跳過這一條，繼續掃描
	Reject
	// RejectAndStop 跳過並提前結束整輪掃描（例如列表按時間倒序、已掃到非當日新聞）
	RejectAndStop
)

// PartialRecord 列表頁解析出的單條新聞基本資訊
type PartialRecord struct {
	Title          string
	URL            string
	RawPublishTime string // 各站原始時間字串，未正規化
}

// DetailFields 詳情頁補充的欄位；列表頁已有的欄位這裡作為備援
type DetailFields struct {
	Author         string
	Title          string
	RawPublishTime string
}

// Candidate 提供給 ShouldProcess 判斷的視圖。列表階段 PublishTime 為原始字串，
// 正規化後再判斷一次時則是標準格式。
type Candidate struct {
	Title       string
	URL         string
	PublishTime string
}

// SourceAdapter 單一新聞來源的能力集合：建頁面 URL、解析列表與詳情、
// 抽取穩定 ID、欄位正規化、取捨判斷。實例之間不共享可變狀態。
type SourceAdapter interface {
	Name() string

	// BuildPageURL 回傳第 page 頁的列表 URL；不分頁的來源忽略 page
	BuildPageURL(page int) string

	// ParseList 解析列表頁內容；解析不了就回傳空列表，不報錯
	ParseList(content []byte) []PartialRecord

	// ParseDetail 抓取並解析詳情頁
	ParseDetail(ctx context.Context, url string) (*DetailFields, error)

	// ExtractID 從 URL 抽取該來源內唯一且跨次執行穩定的 ID；
	// 去重正確性依賴它，任何內部失敗都退回 URL 雜湊而非報錯
	ExtractID(url string) string

	// Normalize 合併列表與詳情欄位，產出入庫格式（時間轉為標準格式）
	Normalize(partial PartialRecord, detail DetailFields) *storage.NewsRecord

	// ShouldProcess 取捨判斷；管線會在列表階段與正規化後各呼叫一次
	ShouldProcess(c Candidate) Decision
}

// hashURL URL 的 SHA-1 雜湊，作為各站 ID 抽取失敗時的穩定退路
func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
