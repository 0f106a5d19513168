package scraper

import (
	"strings"
	"time"
)

// TimeLayout 入庫的標準時間格式
const TimeLayout = "2006-01-02 15:04:05"

// NormalizeDateTime 將各站的時間字串統一為標準格式 YYYY-MM-DD HH:MM:SS。
// now 由呼叫端傳入，缺日期的格式（如 "13:53"、"08/27 14:02"）以它補全，
// 這也讓轉換結果可被測試固定。支援的格式：
//
//	"13:53"                   -> 當天日期 + 13:53:00
//	"08/27 14:02"             -> 當年，若結果落在未來則視為去年
//	"2025-08-27T11:45:34+08:00" -> 依原時區取牆上時間
//	"2025/08/27 11:45[:34]"   -> 斜線轉橫線，缺秒補 :00
//	"2025/08/27"              -> 當天零點（固定補 00:00:00，保持結果可重現）
//
// 無法辨識的輸入原樣（去除前後空白後）回傳，交由資料庫保存原始字串。
func NormalizeDateTime(raw string, now time.Time) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// ISO-8601（ChinaTimes 的 meta 標籤格式）
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Format(TimeLayout)
		}
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return t.Format(TimeLayout)
		}
	}

	// 只有時間沒有日期（LTN 當日新聞給 "13:53"）
	if !strings.ContainsAny(s, "/-") && strings.Contains(s, ":") {
		if t, err := time.Parse("15:04:05", s); err == nil {
			return now.Format("2006-01-02") + " " + t.Format("15:04:05")
		}
		if t, err := time.Parse("15:04", s); err == nil {
			return now.Format("2006-01-02") + " " + t.Format("15:04") + ":00"
		}
		return s
	}

	if strings.Contains(s, "/") {
		switch strings.Count(s, "/") {
		case 1:
			// "MM/DD HH:MM"（SETN 列表頁），補當年；結果在未來代表其實是去年的新聞
			layouts := []string{"01/02 15:04:05", "01/02 15:04", "01/02"}
			for _, layout := range layouts {
				if t, err := time.ParseInLocation("2006 "+layout, now.Format("2006")+" "+s, now.Location()); err == nil {
					if t.After(now) {
						t = t.AddDate(-1, 0, 0)
					}
					return t.Format(TimeLayout)
				}
			}
		case 2:
			// "YYYY/MM/DD[ HH:MM[:SS]]"
			layouts := []string{"2006/01/02 15:04:05", "2006/01/02 15:04", "2006/01/02"}
			for _, layout := range layouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.Format(TimeLayout)
				}
			}
		}
		return s
	}

	// 已經是橫線日期，只需補齊時間部分
	layouts := []string{TimeLayout, "2006-01-02 15:04", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout)
		}
	}
	return s
}
