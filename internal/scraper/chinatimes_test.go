package scraper

import (
	"testing"
	"time"
)

const chinatimesListFixture = `
<html><body>
<ul class="vertical-list">
  <li>
    <h3 class="title"><a href="/realtimenews/20240915001234-260407">總統出席國慶籌備會議</a></h3>
    <time datetime="2024-09-15 09:12">09:12</time>
  </li>
  <li>
    <h3 class="title"><a href="https://www.chinatimes.com/newspapers/20240915000111-260102">立委質詢預算案</a></h3>
    <time datetime="2024-09-15 04:10">04:10</time>
  </li>
  <li><h3 class="title"><a href="/realtimenews/20240915009999-260407"></a></h3></li>
</ul>
</body></html>`

func TestChinaTimesParseList(t *testing.T) {
	c := NewChinaTimes(nil)
	list := c.ParseList([]byte(chinatimesListFixture))

	if len(list) != 2 {
		t.Fatalf("ParseList got %d items, want 2", len(list))
	}
	if list[0].URL != "https://www.chinatimes.com/realtimenews/20240915001234-260407" {
		t.Errorf("relative url = %q", list[0].URL)
	}
	if list[0].RawPublishTime != "2024-09-15 09:12" {
		t.Errorf("raw time = %q", list[0].RawPublishTime)
	}
}

func TestChinaTimesExtractID(t *testing.T) {
	c := NewChinaTimes(nil)
	cases := []struct {
		url, want string
	}{
		{"https://www.chinatimes.com/realtimenews/20240915001234-260407", "20240915001234-260407"},
		{"https://www.chinatimes.com/newspapers/20240915000111-260102?chdtv", "20240915000111-260102"},
	}
	for _, tc := range cases {
		if got := c.ExtractID(tc.url); got != tc.want {
			t.Errorf("ExtractID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}

	u := "https://www.chinatimes.com/opinion/somecolumn"
	if h := c.ExtractID(u); h == "" || h != c.ExtractID(u) {
		t.Fatalf("hash fallback not stable")
	}
}

func TestChinaTimesNormalizePrefersDetailTime(t *testing.T) {
	c := NewChinaTimes(nil)
	c.nowFn = func() time.Time { return time.Date(2024, 9, 15, 10, 0, 0, 0, time.Local) }

	rec := c.Normalize(
		PartialRecord{
			Title:          "總統出席國慶籌備會議",
			URL:            "https://www.chinatimes.com/realtimenews/20240915001234-260407",
			RawPublishTime: "2024-09-15 09:12",
		},
		DetailFields{RawPublishTime: "2024-09-15T09:12:34+08:00", Author: "林周義"},
	)

	// 詳情頁的 ISO 時間帶秒數，優先於列表標註
	if rec.PublishTime != "2024-09-15 09:12:34" {
		t.Fatalf("publish time = %q", rec.PublishTime)
	}
	if rec.SourceID != "20240915001234-260407" {
		t.Fatalf("source id = %q", rec.SourceID)
	}
}
