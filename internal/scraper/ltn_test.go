package scraper

import "testing"

func TestLTNParseListArray(t *testing.T) {
	l := NewLTN(nil)
	content := `{"data":[
		{"title":"新聞一","url":"https://news.ltn.com.tw/news/politics/breakingnews/4812345","time":"13:53"},
		{"title":"新聞二","url":"https://news.ltn.com.tw/news/politics/breakingnews/4812346","time":"2024/09/14 22:10:00"},
		{"title":"","url":"https://news.ltn.com.tw/news/politics/breakingnews/4812347","time":"12:00"}
	]}`

	list := l.ParseList([]byte(content))
	if len(list) != 2 {
		t.Fatalf("ParseList got %d items, want 2", len(list))
	}
	if list[0].Title != "新聞一" || list[0].RawPublishTime != "13:53" {
		t.Errorf("item 0 = %+v", list[0])
	}
}

func TestLTNParseListKeyedObject(t *testing.T) {
	// 第 2 頁起 data 變成以名次為鍵的物件；輸出必須依名次排列（時間倒序），
	// 名次要按數值比較，"10" 不能排在 "2" 前面
	l := NewLTN(nil)
	content := `{"data":{
		"10":{"title":"新聞十","url":"https://news.ltn.com.tw/news/politics/breakingnews/4812310","time":"12:00"},
		"2":{"title":"新聞二","url":"https://news.ltn.com.tw/news/politics/breakingnews/4812302","time":"13:40"},
		"1":{"title":"新聞一","url":"https://news.ltn.com.tw/news/politics/breakingnews/4812301","time":"13:53"},
		"9":{"title":"新聞九","url":"https://news.ltn.com.tw/news/politics/breakingnews/4812309","time":"12:10"}
	}}`

	want := []string{"新聞一", "新聞二", "新聞九", "新聞十"}
	// map 走訪順序每次不同，多跑幾輪確認排序穩定
	for run := 0; run < 10; run++ {
		list := l.ParseList([]byte(content))
		if len(list) != len(want) {
			t.Fatalf("ParseList got %d items, want %d", len(list), len(want))
		}
		for i, title := range want {
			if list[i].Title != title {
				t.Fatalf("run %d: item %d = %q, want %q", run, i, list[i].Title, title)
			}
		}
	}
}

func TestLTNParseListGarbage(t *testing.T) {
	l := NewLTN(nil)
	if got := l.ParseList([]byte("<html>not json</html>")); len(got) != 0 {
		t.Fatalf("garbage input should yield empty list, got %d items", len(got))
	}
	if got := l.ParseList([]byte(`{"data":null}`)); len(got) != 0 {
		t.Fatalf("null data should yield empty list, got %d items", len(got))
	}
}

func TestLTNExtractID(t *testing.T) {
	l := NewLTN(nil)
	if id := l.ExtractID("https://news.ltn.com.tw/news/politics/breakingnews/4812345"); id != "4812345" {
		t.Fatalf("ExtractID = %q, want 4812345", id)
	}

	// 非 breakingnews URL 退回雜湊
	u := "https://news.ltn.com.tw/news/paper/1630001"
	if h := l.ExtractID(u); h == "" || h != l.ExtractID(u) {
		t.Fatalf("hash fallback not stable")
	}
}

func TestExtractLTNAuthor(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"〔記者王文萱／台北報導〕立法院今日……", "王文萱"},
		{"〔中央社／綜合報導〕……", "中央社"},
		{"記者李欣芳／新北報導 內文", "李欣芳"},
		{"沒有署名", ""},
	}
	for _, c := range cases {
		if got := extractLTNAuthor(c.text); got != c.want {
			t.Errorf("extractLTNAuthor(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}
