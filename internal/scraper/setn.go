package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gorm.io/datatypes"

	"github.com/LJTian/NewsFlow/internal/storage"
)

const (
	setnSource  = "SETN"
	setnBaseURL = "https://www.setn.com/"
)

// SETN 三立新聞網政治版爬蟲。列表頁時間為 "MM/DD HH:MM"，
// ID 取自 URL 的 NewsID 參數。
type SETN struct {
	client *Client
	nowFn  func() time.Time
}

func NewSETN(client *Client) *SETN {
	return &SETN{client: client, nowFn: time.Now}
}

func (s *SETN) Name() string { return setnSource }

func (s *SETN) BuildPageURL(page int) string {
	return fmt.Sprintf("https://www.setn.com/ViewAll.aspx?PageGroupID=6&p=%d", page)
}

func (s *SETN) ParseList(content []byte) []PartialRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil
	}

	var list []PartialRecord
	doc.Find("div.col-sm-12.newsItems").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.gt").First()
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
			full = setnBaseURL + strings.TrimPrefix(href, "/")
		}

		list = append(list, PartialRecord{
			Title:          title,
			URL:            cleanSETNURL(full),
			RawPublishTime: strings.TrimSpace(sel.Find("time").First().Text()),
		})
	})
	return list
}

// cleanSETNURL 只保留 NewsID 參數，去掉 utm 之類的雜訊，讓同一篇新聞的 URL 穩定
func cleanSETNURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	id := u.Query().Get("NewsID")
	if id == "" {
		return raw
	}
	return fmt.Sprintf("%s://%s%s?NewsID=%s", u.Scheme, u.Host, u.Path, id)
}

func (s *SETN) ExtractID(newsURL string) string {
	u, err := url.Parse(newsURL)
	if err == nil {
		if id := u.Query().Get("NewsID"); id != "" {
			return id
		}
	}
	return hashURL(newsURL)
}

func (s *SETN) ParseDetail(ctx context.Context, newsURL string) (*DetailFields, error) {
	body, err := s.client.FetchPage(ctx, newsURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", newsURL, err)
	}

	detail := &DetailFields{}

	// 記者署名在內文第一段
	firstPara := doc.Find(`div#ckuse[itemprop="articleBody"] p`).First().Text()
	detail.Author = extractSETNAuthor(firstPara)

	// 詳情頁標題與時間作為列表頁缺漏時的備援
	if title := doc.Find("h1.news-title-3").First().Text(); title != "" {
		detail.Title = strings.TrimSpace(title)
	} else {
		detail.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if t := doc.Find("time.news-flash-date").First().Text(); t != "" {
		detail.RawPublishTime = strings.TrimSpace(t)
	} else if t, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		detail.RawPublishTime = strings.TrimSpace(t)
	}

	return detail, nil
}

var setnAuthorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`記者(\S+)／\S+報導`),
	regexp.MustCompile(`政治中心／(\S+)報導`),
	regexp.MustCompile(`文、圖／(\S+)`),
	regexp.MustCompile(`圖、文／(\S+)`),
	regexp.MustCompile(`文／\S+／(\S+)`),
	regexp.MustCompile(`文／(\S+)`),
}

func extractSETNAuthor(text string) string {
	for _, p := range setnAuthorPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func (s *SETN) Normalize(partial PartialRecord, detail DetailFields) *storage.NewsRecord {
	title := partial.Title
	if title == "" {
		title = detail.Title
	}
	rawTime := partial.RawPublishTime
	if rawTime == "" {
		rawTime = detail.RawPublishTime
	}

	return &storage.NewsRecord{
		Source:      setnSource,
		SourceID:    s.ExtractID(partial.URL),
		Title:       title,
		Author:      detail.Author,
		URL:         partial.URL,
		PublishTime: NormalizeDateTime(rawTime, s.nowFn()),
		Extra:       datatypes.JSONMap{"raw_publish_time": rawTime},
	}
}

func (s *SETN) ShouldProcess(Candidate) Decision { return Accept }
