package curseforge

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"curse_spider/config"
	"curse_spider/controllers"
	"curse_spider/internal/spider"
)

// catalogServer 模拟一个分页目录站点
// 按页码返回固定素材，并记录每页收到的请求次数
type catalogServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests map[int]int
	pages    map[int]func(hits int) (int, string) // 页码 -> (返回码, 页面)
}

func newCatalogServer() *catalogServer {
	cs := &catalogServer{
		requests: make(map[int]int),
		pages:    make(map[int]func(int) (int, string)),
	}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		cs.mu.Lock()
		cs.requests[page]++
		hits := cs.requests[page]
		handler := cs.pages[page]
		cs.mu.Unlock()

		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		code, body := handler(hits)
		if code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Write([]byte(body))
	}))
	return cs
}

func (cs *catalogServer) hits(page int) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.requests[page]
}

// staticPage 固定返回同一个页面
func staticPage(body string) func(int) (int, string) {
	return func(int) (int, string) { return http.StatusOK, body }
}

// flakyPage 前failures次返回503，之后返回页面
func flakyPage(failures int, body string) func(int) (int, string) {
	return func(hits int) (int, string) {
		if hits <= failures {
			return http.StatusServiceUnavailable, ""
		}
		return http.StatusOK, body
	}
}

// testConfig 生成指向测试服务器的快速配置
func testConfig(t *testing.T, baseURL, outputPath string) *config.Config {
	t.Helper()
	return &config.Config{
		Spider: config.SpiderConfig{
			StartPage:   1,
			PageCount:   5,
			PageSize:    20,
			Concurrency: 2,
			OutputPath:  outputPath,
			LogPath:     filepath.Join(t.TempDir(), "test.log"),
		},
		Fetcher: config.FetcherConfig{
			TimeoutSec:    5,
			MaxAttempts:   4,
			DelayBaseMs:   1,
			DelayJitterMs: 1,
			BackoffBaseMs: 1,
			BackoffFactor: 2.0,
		},
		BaseURL: baseURL,
	}
}

// readCSV 读取输出文件的全部行(含表头)
func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开输出文件失败: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("读取输出文件失败: %v", err)
	}
	return rows
}

func runSpider(t *testing.T, cfg *config.Config) *CurseSpider {
	t.Helper()
	sp, err := New(cfg, controllers.NewLoggerManager())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := spider.Execute(context.Background(), sp, 0); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return sp
}

// 端到端: 两页数据加一页重试后恢复，空页提前结束
func TestSpiderEndToEnd(t *testing.T) {
	cs := newCatalogServer()
	defer cs.Close()

	cs.pages[1] = staticPage(pageHTML(
		cardSpec{slug: "mod-a", name: "Mod A", downloads: "1K", created: "Jan 5, 2023"},
		cardSpec{slug: "mod-b", name: "Mod B", downloads: "12,345"},
	))
	cs.pages[2] = flakyPage(3, pageHTML(
		cardSpec{slug: "mod-c", name: "Mod C", downloads: "3.2M"},
	))
	cs.pages[3] = staticPage(pageHTML())

	outputPath := filepath.Join(t.TempDir(), "out.csv")
	sp := runSpider(t, testConfig(t, cs.URL+"/mods", outputPath))

	stats := sp.Stats()
	if stats.State != StateFinished {
		t.Errorf("State = %v, want %v", stats.State, StateFinished)
	}
	if stats.RowsWritten != 3 {
		t.Errorf("RowsWritten = %v, want %v", stats.RowsWritten, 3)
	}
	if stats.PagesOK != 2 {
		t.Errorf("PagesOK = %v, want %v", stats.PagesOK, 2)
	}

	// 第2页应经历3次失败加1次成功
	if got := cs.hits(2); got != 4 {
		t.Errorf("第2页请求次数 = %v, want %v", got, 4)
	}
	// 空页之后不应再请求第4页
	if got := cs.hits(4); got != 0 {
		t.Errorf("第4页请求次数 = %v, want %v", got, 0)
	}

	rows := readCSV(t, outputPath)
	if len(rows) != 4 {
		t.Fatalf("输出行数 = %v, want %v (表头+3条)", len(rows), 4)
	}

	// 记录按页序写入
	wantSlugs := []string{"mod-a", "mod-b", "mod-c"}
	for i, want := range wantSlugs {
		if got := rows[i+1][1]; got != want {
			t.Errorf("第%d条记录slug = %v, want %v", i+1, got, want)
		}
	}

	// 下载数已规范化
	if got := rows[1][6]; got != "1000" {
		t.Errorf("第1条记录downloads = %v, want %v", got, "1000")
	}
	if got := rows[1][4]; got != "2023-01-05" {
		t.Errorf("第1条记录created_at = %v, want %v", got, "2023-01-05")
	}
}

// 端到端: 重复运行不产生重复行
func TestSpiderIdempotent(t *testing.T) {
	cs := newCatalogServer()
	defer cs.Close()

	cs.pages[1] = staticPage(pageHTML(
		cardSpec{slug: "mod-a", name: "Mod A"},
		cardSpec{slug: "mod-b", name: "Mod B"},
	))
	cs.pages[2] = staticPage(pageHTML())

	outputPath := filepath.Join(t.TempDir(), "out.csv")
	cfg := testConfig(t, cs.URL+"/mods", outputPath)

	first := runSpider(t, cfg)
	if got := first.Stats().RowsWritten; got != 2 {
		t.Fatalf("首次运行写入 = %v, want %v", got, 2)
	}

	second := runSpider(t, cfg)
	if got := second.Stats().RowsWritten; got != 0 {
		t.Errorf("二次运行写入 = %v, want %v", got, 0)
	}
	if got := second.Stats().Duplicates; got != 2 {
		t.Errorf("二次运行重复数 = %v, want %v", got, 2)
	}

	rows := readCSV(t, outputPath)
	if len(rows) != 3 {
		t.Errorf("输出行数 = %v, want %v (表头+2条)", len(rows), 3)
	}
}

// 端到端: 抓取失败的页按跳过计数，采集继续
func TestSpiderSkipsFailedPages(t *testing.T) {
	cs := newCatalogServer()
	defer cs.Close()

	cs.pages[1] = staticPage(pageHTML(cardSpec{slug: "mod-a", name: "Mod A"}))
	// 第2页始终503，尝试用尽后跳过
	cs.pages[2] = flakyPage(1000, "")
	cs.pages[3] = staticPage(pageHTML(cardSpec{slug: "mod-b", name: "Mod B"}))
	cs.pages[4] = staticPage(pageHTML())

	outputPath := filepath.Join(t.TempDir(), "out.csv")
	sp := runSpider(t, testConfig(t, cs.URL+"/mods", outputPath))

	stats := sp.Stats()
	if stats.PagesSkipped != 1 {
		t.Errorf("PagesSkipped = %v, want %v", stats.PagesSkipped, 1)
	}
	if stats.RowsWritten != 2 {
		t.Errorf("RowsWritten = %v, want %v", stats.RowsWritten, 2)
	}
	if got := cs.hits(2); got != 4 {
		t.Errorf("第2页请求次数 = %v, want %v", got, 4)
	}
}

// 端到端: 缺少slug的条目被拒绝并计入无效数
func TestSpiderRejectsMissingSlug(t *testing.T) {
	cs := newCatalogServer()
	defer cs.Close()

	cs.pages[1] = staticPage(pageHTML(
		cardSpec{slug: "mod-a", name: "Mod A"},
		cardSpec{name: "Broken", noLink: true},
	))
	cs.pages[2] = staticPage(pageHTML())

	outputPath := filepath.Join(t.TempDir(), "out.csv")
	sp := runSpider(t, testConfig(t, cs.URL+"/mods", outputPath))

	stats := sp.Stats()
	if stats.Invalid != 1 {
		t.Errorf("Invalid = %v, want %v", stats.Invalid, 1)
	}
	if stats.RowsWritten != 1 {
		t.Errorf("RowsWritten = %v, want %v", stats.RowsWritten, 1)
	}
}

// 端到端: 上下文已取消时直接进入收尾状态
func TestSpiderAborted(t *testing.T) {
	cs := newCatalogServer()
	defer cs.Close()
	cs.pages[1] = staticPage(pageHTML(cardSpec{slug: "mod-a", name: "Mod A"}))

	outputPath := filepath.Join(t.TempDir(), "out.csv")
	sp, err := New(testConfig(t, cs.URL+"/mods", outputPath), controllers.NewLoggerManager())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := spider.Execute(ctx, sp, 0); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	stats := sp.Stats()
	if stats.State != StateAborted {
		t.Errorf("State = %v, want %v", stats.State, StateAborted)
	}
	if stats.RowsWritten != 0 {
		t.Errorf("RowsWritten = %v, want %v", stats.RowsWritten, 0)
	}
}

// 页数上限: 有限页数在处理完指定页数后停止
func TestPageLimit(t *testing.T) {
	limit := FinitePages(3)
	if limit.Reached(2) {
		t.Error("处理2页不应达到3页上限")
	}
	if !limit.Reached(3) {
		t.Error("处理3页应达到3页上限")
	}

	open := UntilCatalogEnd()
	if open.Reached(1000000) {
		t.Error("until_end模式不应有页数上限")
	}
}
