package scraper

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gorm.io/datatypes"

	"github.com/LJTian/NewsFlow/internal/storage"
)

const (
	tvbsSource  = "TVBS"
	tvbsBaseURL = "https://news.tvbs.com.tw"
)

// TVBS 政治新聞爬蟲。列表頁只有連結，標題與時間都從詳情頁取；
// 列表按時間倒序，掃到非當日新聞即可停止整輪掃描。
type TVBS struct {
	client *Client
	nowFn  func() time.Time
}

func NewTVBS(client *Client) *TVBS {
	return &TVBS{client: client, nowFn: time.Now}
}

func (t *TVBS) Name() string { return tvbsSource }

// BuildPageURL TVBS 列表頁不分頁，永遠回傳政治版首頁
func (t *TVBS) BuildPageURL(int) string {
	return tvbsBaseURL + "/politics"
}

func (t *TVBS) ParseList(content []byte) []PartialRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var list []PartialRecord
	doc.Find(`a[href*="/politics/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		full := href
		if !strings.HasPrefix(href, "http") {
			full = tvbsBaseURL + href
		}
		// 只收個別新聞頁（尾段是數字 ID），並去掉列表頁自身與重複連結
		if !isDigits(lastPathSegment(full)) {
			return
		}
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}

		list = append(list, PartialRecord{URL: full})
	})
	return list
}

func lastPathSegment(u string) string {
	trimmed := strings.TrimRight(u, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (t *TVBS) ExtractID(newsURL string) string {
	if id := lastPathSegment(newsURL); isDigits(id) {
		return id
	}
	return hashURL(newsURL)
}

func (t *TVBS) ParseDetail(ctx context.Context, newsURL string) (*DetailFields, error) {
	body, err := t.client.FetchPage(ctx, newsURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", newsURL, err)
	}
	if doc.Find("div.error_div").Length() > 0 {
		return nil, fmt.Errorf("tvbs: article not found: %s", newsURL)
	}

	detail := &DetailFields{
		Title:  strings.TrimSpace(doc.Find("h1.title").First().Text()),
		Author: strings.TrimSpace(doc.Find("div.author a").First().Text()),
	}

	if iso, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		detail.RawPublishTime = strings.TrimSpace(iso)
	} else {
		// 備援：author 區塊的「發佈時間：」行
		doc.Find("div.author").Contents().EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			line := strings.TrimSpace(sel.Text())
			if strings.Contains(line, "發佈時間：") {
				detail.RawPublishTime = strings.TrimSpace(strings.ReplaceAll(line, "發佈時間：", ""))
				return false
			}
			return true
		})
	}

	return detail, nil
}

func (t *TVBS) Normalize(partial PartialRecord, detail DetailFields) *storage.NewsRecord {
	title := partial.Title
	if title == "" {
		title = detail.Title
	}
	rawTime := partial.RawPublishTime
	if rawTime == "" {
		rawTime = detail.RawPublishTime
	}

	return &storage.NewsRecord{
		Source:      tvbsSource,
		SourceID:    t.ExtractID(partial.URL),
		Title:       title,
		Author:      detail.Author,
		URL:         partial.URL,
		PublishTime: NormalizeDateTime(rawTime, t.nowFn()),
		Extra:       datatypes.JSONMap{"raw_publish_time": rawTime},
	}
}

// ShouldProcess 只收當日新聞。列表階段時間未知，先放行；
// 正規化後若不是今天，由於列表按時間倒序，直接結束整輪掃描。
func (t *TVBS) ShouldProcess(c Candidate) Decision {
	if c.PublishTime == "" || len(c.PublishTime) < 10 {
		return Accept
	}
	if c.PublishTime[:10] == t.nowFn().Format("2006-01-02") {
		return Accept
	}
	return RejectAndStop
}
