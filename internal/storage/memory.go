package storage

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore 純記憶體的 Store 實作，供測試與 DATABASE_TYPE=memory 使用。
// 語意與 GormStore 對齊：(source, id) 唯一、批量寫入先去重。
type MemoryStore struct {
	mu      sync.Mutex
	records []NewsRecord
	index   map[string]struct{}
	nextID  uint

	// FailBatch 讓 InsertBatch 直接回報失敗，供管線的逐筆回退路徑測試
	FailBatch bool
	// FailAll 模擬存儲層整體不可用
	FailAll bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index:  make(map[string]struct{}),
		nextID: 1,
	}
}

func memKey(source, sourceID string) string {
	return source + "\x00" + sourceID
}

func (m *MemoryStore) Exists(source, sourceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return false, ErrUnavailable
	}
	_, ok := m.index[memKey(source, sourceID)]
	return ok, nil
}

func (m *MemoryStore) insertLocked(rec *NewsRecord) bool {
	key := memKey(rec.Source, rec.SourceID)
	if _, ok := m.index[key]; ok {
		return false
	}
	stored := *rec
	stored.ID = m.nextID
	stored.CreatedAt = time.Now()
	m.nextID++
	m.records = append(m.records, stored)
	m.index[key] = struct{}{}
	return true
}

func (m *MemoryStore) InsertOne(rec *NewsRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return false, ErrUnavailable
	}
	return m.insertLocked(rec), nil
}

func (m *MemoryStore) InsertBatch(recs []*NewsRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll || m.FailBatch {
		return 0, ErrUnavailable
	}
	inserted := 0
	for _, rec := range recs {
		if m.insertLocked(rec) {
			inserted++
		}
	}
	return inserted, nil
}

func (m *MemoryStore) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return 0, ErrUnavailable
	}
	return int64(len(m.records)), nil
}

func (m *MemoryStore) CountBySource() ([]SourceCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return nil, ErrUnavailable
	}
	counts := make(map[string]int64)
	for _, r := range m.records {
		counts[r.Source]++
	}
	out := make([]SourceCount, 0, len(counts))
	for src, n := range counts {
		out = append(out, SourceCount{Source: src, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}

func (m *MemoryStore) Recent(limit int) ([]NewsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	// records 按寫入順序追加，入庫時間倒序即反向走訪
	out := make([]NewsRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryStore) Query(q QueryParams) (*QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return nil, ErrUnavailable
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 || q.PerPage > 100 {
		q.PerPage = 20
	}

	var matched []NewsRecord
	for _, r := range m.records {
		if q.Source != "" && r.Source != q.Source {
			continue
		}
		if q.TitleContains != "" && !strings.Contains(r.Title, q.TitleContains) {
			continue
		}
		if q.From != "" && r.PublishTime < q.From {
			continue
		}
		if q.To != "" && r.PublishTime > q.To {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PublishTime > matched[j].PublishTime
	})

	total := int64(len(matched))
	start := (q.Page - 1) * q.PerPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.PerPage
	if end > len(matched) {
		end = len(matched)
	}

	return &QueryResult{
		Data:    matched[start:end],
		Total:   total,
		Page:    q.Page,
		PerPage: q.PerPage,
		Pages:   int((total + int64(q.PerPage) - 1) / int64(q.PerPage)),
	}, nil
}
