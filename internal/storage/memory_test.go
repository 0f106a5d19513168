package storage

import (
	"fmt"
	"testing"
)

func rec(source, id, title, publishTime string) *NewsRecord {
	return &NewsRecord{
		Source:      source,
		SourceID:    id,
		Title:       title,
		URL:         fmt.Sprintf("https://%s.test/news/%s", source, id),
		PublishTime: publishTime,
	}
}

func TestInsertOneDeduplicates(t *testing.T) {
	s := NewMemoryStore()

	ok, err := s.InsertOne(rec("setn", "100", "第一條", "2024-09-15 10:00:00"))
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	// 同 (source, id) 再寫一次要回報未寫入
	ok, err = s.InsertOne(rec("setn", "100", "第一條改", "2024-09-15 11:00:00"))
	if err != nil || ok {
		t.Fatalf("duplicate insert: ok=%v err=%v", ok, err)
	}
	// 不同來源的相同 ID 彼此獨立
	ok, err = s.InsertOne(rec("ltn", "100", "另一家", "2024-09-15 10:00:00"))
	if err != nil || !ok {
		t.Fatalf("other source: ok=%v err=%v", ok, err)
	}

	exists, err := s.Exists("setn", "100")
	if err != nil || !exists {
		t.Fatalf("Exists(setn,100) = %v, %v", exists, err)
	}
	exists, _ = s.Exists("setn", "999")
	if exists {
		t.Fatal("Exists(setn,999) should be false")
	}
}

func TestInsertBatchSkipsKnown(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.InsertOne(rec("setn", "1", "舊聞", "2024-09-14 10:00:00")); err != nil {
		t.Fatal(err)
	}

	n, err := s.InsertBatch([]*NewsRecord{
		rec("setn", "1", "舊聞", "2024-09-14 10:00:00"),
		rec("setn", "2", "新聞二", "2024-09-15 10:00:00"),
		rec("setn", "3", "新聞三", "2024-09-15 11:00:00"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}
	if total, _ := s.Count(); total != 3 {
		t.Fatalf("count = %d, want 3", total)
	}
}

func TestCountBySourceOrdering(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		s.InsertOne(rec("setn", fmt.Sprint(i), "t", "2024-09-15 10:00:00"))
	}
	for i := 0; i < 1; i++ {
		s.InsertOne(rec("ltn", fmt.Sprint(i), "t", "2024-09-15 10:00:00"))
	}

	counts, err := s.CountBySource()
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[0].Source != "setn" || counts[0].Count != 3 || counts[1].Source != "ltn" {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	for i := 1; i <= 5; i++ {
		s.InsertOne(rec("setn", fmt.Sprint(i), fmt.Sprintf("新聞 %d", i), "2024-09-15 10:00:00"))
	}

	got, err := s.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// 依入庫順序倒序
	for i, wantID := range []string{"5", "4", "3"} {
		if got[i].SourceID != wantID {
			t.Fatalf("recent[%d] = %s, want %s", i, got[i].SourceID, wantID)
		}
	}
}

func TestQueryFiltersAndPaging(t *testing.T) {
	s := NewMemoryStore()
	s.InsertOne(rec("setn", "1", "颱風來襲", "2024-09-13 08:00:00"))
	s.InsertOne(rec("setn", "2", "股市大漲", "2024-09-14 09:00:00"))
	s.InsertOne(rec("ltn", "3", "颱風假確定", "2024-09-15 10:00:00"))
	s.InsertOne(rec("tvbs", "4", "交通管制", "2024-09-15 11:00:00"))

	// 來源過濾
	res, err := s.Query(QueryParams{Source: "setn"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Fatalf("source filter total = %d, want 2", res.Total)
	}

	// 標題關鍵字
	res, _ = s.Query(QueryParams{TitleContains: "颱風"})
	if res.Total != 2 {
		t.Fatalf("title filter total = %d, want 2", res.Total)
	}

	// 時間範圍，結果按發佈時間倒序
	res, _ = s.Query(QueryParams{From: "2024-09-14 00:00:00", To: "2024-09-15 10:30:00"})
	if res.Total != 2 || res.Data[0].SourceID != "3" || res.Data[1].SourceID != "2" {
		t.Fatalf("range query = total %d, data %+v", res.Total, res.Data)
	}

	// 分頁
	res, _ = s.Query(QueryParams{Page: 2, PerPage: 3})
	if res.Total != 4 || res.Pages != 2 || len(res.Data) != 1 {
		t.Fatalf("paging: total=%d pages=%d len=%d", res.Total, res.Pages, len(res.Data))
	}
	// 超出範圍的頁碼回空集而非錯誤
	res, _ = s.Query(QueryParams{Page: 9, PerPage: 3})
	if len(res.Data) != 0 {
		t.Fatalf("out-of-range page returned %d records", len(res.Data))
	}
}

func TestUnavailableStoreSurfacesSentinel(t *testing.T) {
	s := NewMemoryStore()
	s.FailAll = true

	if _, err := s.Exists("setn", "1"); err != ErrUnavailable {
		t.Fatalf("Exists err = %v", err)
	}
	if _, err := s.InsertOne(rec("setn", "1", "t", "")); err != ErrUnavailable {
		t.Fatalf("InsertOne err = %v", err)
	}
	if _, err := s.InsertBatch(nil); err != ErrUnavailable {
		t.Fatalf("InsertBatch err = %v", err)
	}
	if _, err := s.Count(); err != ErrUnavailable {
		t.Fatalf("Count err = %v", err)
	}
}
