package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gorm.io/datatypes"

	"github.com/LJTian/NewsFlow/internal/storage"
)

const ltnSource = "LTN"

// LTN 自由時報政治版爬蟲。列表是 JSON API，當日新聞的時間只給 "HH:MM"，
// 舊新聞給 "YYYY/MM/DD HH:MM:SS"。ID 取自 URL 的 breakingnews 尾段。
type LTN struct {
	client *Client
	nowFn  func() time.Time
}

func NewLTN(client *Client) *LTN {
	return &LTN{client: client, nowFn: time.Now}
}

func (l *LTN) Name() string { return ltnSource }

func (l *LTN) BuildPageURL(page int) string {
	return fmt.Sprintf("https://news.ltn.com.tw/ajax/breakingnews/politics/%d", page)
}

type ltnListItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  string `json:"time"`
}

func (l *LTN) ParseList(content []byte) []PartialRecord {
	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(content, &payload); err != nil || len(payload.Data) == 0 {
		return nil
	}

	// 第 1 頁的 data 是陣列，之後的頁面變成以名次為鍵的物件。
	// 依名次走訪以保持時間倒序，連續重複的提前收工依賴這個順序
	var items []ltnListItem
	if err := json.Unmarshal(payload.Data, &items); err != nil {
		var keyed map[string]ltnListItem
		if err := json.Unmarshal(payload.Data, &keyed); err != nil {
			return nil
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, aerr := strconv.Atoi(keys[i])
			b, berr := strconv.Atoi(keys[j])
			if aerr == nil && berr == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			items = append(items, keyed[k])
		}
	}

	var list []PartialRecord
	for _, it := range items {
		if it.URL == "" || it.Title == "" {
			continue
		}
		list = append(list, PartialRecord{
			Title:          strings.TrimSpace(it.Title),
			URL:            it.URL,
			RawPublishTime: strings.TrimSpace(it.Time),
		})
	}
	return list
}

func (l *LTN) ExtractID(newsURL string) string {
	if idx := strings.LastIndex(newsURL, "breakingnews/"); idx >= 0 {
		id := newsURL[idx+len("breakingnews/"):]
		id = strings.TrimRight(id, "/")
		if id != "" && !strings.ContainsAny(id, "/?") {
			return id
		}
	}
	return hashURL(newsURL)
}

func (l *LTN) ParseDetail(ctx context.Context, newsURL string) (*DetailFields, error) {
	// 先走 articleAjax API，拿不到再退回抓文章頁
	if author, err := l.authorFromAPI(ctx, newsURL); err == nil && author != "" {
		return &DetailFields{Author: author}, nil
	}

	body, err := l.client.FetchPage(ctx, newsURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", newsURL, err)
	}
	text := doc.Find("div.text p").First().Text()
	return &DetailFields{Author: extractLTNAuthor(text)}, nil
}

func (l *LTN) authorFromAPI(ctx context.Context, newsURL string) (string, error) {
	id := l.ExtractID(newsURL)
	apiURL := fmt.Sprintf("https://news.ltn.com.tw/articleAjax/breakingnews/%s/2", id)

	body, err := l.client.FetchPage(ctx, apiURL)
	if err != nil {
		return "", err
	}

	var payload struct {
		AHTML string `json:"A_Html"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("ltn article api %s: %w", id, err)
	}
	return extractLTNAuthor(payload.AHTML), nil
}

var ltnAuthorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`〔記者([^／〕]+)／[^〕]*〕`),
	regexp.MustCompile(`記者([^／\s]+)／\S*報導`),
	regexp.MustCompile(`〔([^／〕]+)／綜合報導〕`),
}

func extractLTNAuthor(text string) string {
	for _, p := range ltnAuthorPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func (l *LTN) Normalize(partial PartialRecord, detail DetailFields) *storage.NewsRecord {
	title := partial.Title
	if title == "" {
		title = detail.Title
	}
	rawTime := partial.RawPublishTime
	if rawTime == "" {
		rawTime = detail.RawPublishTime
	}

	return &storage.NewsRecord{
		Source:      ltnSource,
		SourceID:    l.ExtractID(partial.URL),
		Title:       title,
		Author:      detail.Author,
		URL:         partial.URL,
		PublishTime: NormalizeDateTime(rawTime, l.nowFn()),
		Extra:       datatypes.JSONMap{"raw_publish_time": rawTime},
	}
}

func (l *LTN) ShouldProcess(Candidate) Decision { return Accept }
