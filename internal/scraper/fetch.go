package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const resultCtxKey = "fetch_result"

// Client 共用的頁面抓取器：統一 UA、逾時、域內隨機禮貌延遲與有界重試。
// 所有列表頁與詳情頁請求都經過這裡，限速規則對整個程序生效。
type Client struct {
	collector *colly.Collector
	retries   int
}

type pageResult struct {
	body []byte
	err  error
}

// NewClient 建立抓取器。delayMin/delayMax 為請求間的禮貌延遲區間，
// retries 為單一 URL 的最大嘗試次數（含首次）。
func NewClient(timeout time.Duration, retries int, delayMin, delayMax time.Duration) *Client {
	c := colly.NewCollector(
		colly.UserAgent(defaultUA),
		colly.AllowURLRevisit(), // 排程會重複掃同一批列表頁
	)
	c.SetRequestTimeout(timeout)

	random := delayMax - delayMin
	if random < 0 {
		random = 0
	}
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       delayMin,
		RandomDelay: random,
	})

	// 結果透過 colly 的 per-request Context 帶回，共用 collector 下仍然並發安全
	c.OnResponse(func(r *colly.Response) {
		if res, ok := r.Ctx.GetAny(resultCtxKey).(*pageResult); ok {
			res.body = r.Body
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if res, ok := r.Request.Ctx.GetAny(resultCtxKey).(*pageResult); ok {
			res.err = err
		}
	})

	if retries <= 0 {
		retries = 1
	}
	return &Client{collector: c, retries: retries}
}

// FetchPage 抓取單一頁面內容，失敗時以指數退避重試，重試耗盡回報最後的錯誤
func (c *Client) FetchPage(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.visit(url)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (c *Client) visit(url string) ([]byte, error) {
	res := &pageResult{}
	cctx := colly.NewContext()
	cctx.Put(resultCtxKey, res)

	if err := c.collector.Request("GET", url, nil, cctx, nil); err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.body, nil
}
