package scraper

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gorm.io/datatypes"

	"github.com/LJTian/NewsFlow/internal/storage"
)

const (
	chinatimesSource  = "ChinaTimes"
	chinatimesBaseURL = "https://www.chinatimes.com"
)

// chinatimesIDPattern 新聞 URL 中的時間戳識別碼，例如 20250827001234-260407
var chinatimesIDPattern = regexp.MustCompile(`(20\d{12}-\d{6})`)

// ChinaTimes 中時新聞網政治版爬蟲。詳情頁時間是帶 +08:00 的 ISO-8601，
// ID 取自 URL 的時間戳識別碼。
type ChinaTimes struct {
	client *Client
	nowFn  func() time.Time
}

func NewChinaTimes(client *Client) *ChinaTimes {
	return &ChinaTimes{client: client, nowFn: time.Now}
}

func (c *ChinaTimes) Name() string { return chinatimesSource }

func (c *ChinaTimes) BuildPageURL(page int) string {
	return fmt.Sprintf("%s/politic/total?page=%d", chinatimesBaseURL, page)
}

func (c *ChinaTimes) ParseList(content []byte) []PartialRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil
	}

	var list []PartialRecord
	doc.Find("ul.vertical-list li").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h3.title a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}
		full := href
		if !strings.HasPrefix(href, "http") {
			full = chinatimesBaseURL + href
		}

		rawTime, _ := sel.Find("time[datetime]").First().Attr("datetime")

		list = append(list, PartialRecord{
			Title:          title,
			URL:            full,
			RawPublishTime: strings.TrimSpace(rawTime),
		})
	})
	return list
}

func (c *ChinaTimes) ExtractID(newsURL string) string {
	if m := chinatimesIDPattern.FindString(newsURL); m != "" {
		return m
	}
	return hashURL(newsURL)
}

func (c *ChinaTimes) ParseDetail(ctx context.Context, newsURL string) (*DetailFields, error) {
	body, err := c.client.FetchPage(ctx, newsURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", newsURL, err)
	}

	detail := &DetailFields{
		Title: strings.TrimSpace(doc.Find("h1.article-title").First().Text()),
	}

	if author := doc.Find("div.author a").First().Text(); author != "" {
		detail.Author = strings.TrimSpace(author)
	} else {
		detail.Author = strings.TrimSpace(doc.Find("div.author").First().Text())
	}

	if iso, ok := doc.Find(`meta[itemprop="datePublished"]`).First().Attr("content"); ok {
		detail.RawPublishTime = strings.TrimSpace(iso)
	} else if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		detail.RawPublishTime = strings.TrimSpace(dt)
	}

	return detail, nil
}

func (c *ChinaTimes) Normalize(partial PartialRecord, detail DetailFields) *storage.NewsRecord {
	title := partial.Title
	if title == "" {
		title = detail.Title
	}
	// 詳情頁的 ISO 時間帶完整日期，優先於列表頁可能只有時分的標註
	rawTime := detail.RawPublishTime
	if rawTime == "" {
		rawTime = partial.RawPublishTime
	}

	return &storage.NewsRecord{
		Source:      chinatimesSource,
		SourceID:    c.ExtractID(partial.URL),
		Title:       title,
		Author:      detail.Author,
		URL:         partial.URL,
		PublishTime: NormalizeDateTime(rawTime, c.nowFn()),
		Extra:       datatypes.JSONMap{"raw_publish_time": rawTime},
	}
}

func (c *ChinaTimes) ShouldProcess(Candidate) Decision { return Accept }
