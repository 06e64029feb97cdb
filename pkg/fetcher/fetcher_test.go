package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"curse_spider/pkg/ratelimit"
)

// 测试用的快速限流器，避免测试被礼貌延迟拖慢
func testLimiter() *ratelimit.RateLimitController {
	return ratelimit.NewRateLimitController(nil, ratelimit.Config{
		Rate:        1000,
		Burst:       1000,
		DelayBase:   time.Millisecond,
		DelayJitter: time.Millisecond,
	})
}

func testFetcher(maxAttempts int) *FetcherController {
	return NewFetcherController(Config{
		Concurrency:   2,
		Timeout:       5 * time.Second,
		MaxAttempts:   maxAttempts,
		BackoffBase:   time.Millisecond,
		BackoffFactor: 2.0,
	}, testLimiter(), nil, nil, nil, nil)
}

// 测试退避时长严格递增
func TestBackoffDelayMonotonic(t *testing.T) {
	base := time.Second
	factor := 2.0

	prev := time.Duration(0)
	for retry := 1; retry <= 5; retry++ {
		delay := BackoffDelay(base, factor, retry)
		if delay <= prev {
			t.Errorf("第%d次重试退避 %v 未大于上一次的 %v", retry, delay, prev)
		}
		prev = delay
	}
}

// 测试退避基准值
func TestBackoffDelayValues(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{retry: 1, want: time.Second},
		{retry: 2, want: 2 * time.Second},
		{retry: 3, want: 4 * time.Second},
	}

	for _, tt := range tests {
		if got := BackoffDelay(time.Second, 2.0, tt.retry); got != tt.want {
			t.Errorf("BackoffDelay(retry=%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

// 测试成功抓取
func TestFetchPageOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	result := testFetcher(4).FetchPage(context.Background(), server.URL)
	if result.Status != StatusOK {
		t.Fatalf("Status = %v, want %v", result.Status, StatusOK)
	}
	if result.Body != "<html>ok</html>" {
		t.Errorf("Body = %v", result.Body)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %v, want %v", result.Attempts, 1)
	}
}

// 测试404不重试直接返回not_found
func TestFetchPageNotFound(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := testFetcher(4).FetchPage(context.Background(), server.URL)
	if result.Status != StatusNotFound {
		t.Fatalf("Status = %v, want %v", result.Status, StatusNotFound)
	}
	if got := atomic.LoadInt64(&requests); got != 1 {
		t.Errorf("请求次数 = %v, want %v", got, 1)
	}
}

// 测试503三次后成功
func TestFetchPageRetryThenOK(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html>recovered</html>"))
	}))
	defer server.Close()

	result := testFetcher(4).FetchPage(context.Background(), server.URL)
	if result.Status != StatusOK {
		t.Fatalf("Status = %v, want %v", result.Status, StatusOK)
	}
	if result.Attempts != 4 {
		t.Errorf("Attempts = %v, want %v", result.Attempts, 4)
	}
}

// 测试尝试次数用尽返回failed而不是错误
func TestFetchPageExhausted(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := testFetcher(3).FetchPage(context.Background(), server.URL)
	if result.Status != StatusFailed {
		t.Fatalf("Status = %v, want %v", result.Status, StatusFailed)
	}
	if got := atomic.LoadInt64(&requests); got != 3 {
		t.Errorf("请求次数 = %v, want %v", got, 3)
	}
	if result.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %v, want %v", result.StatusCode, http.StatusInternalServerError)
	}
}

// 测试负的退避基础值被收紧，重试路径不崩溃
func TestFetchPageNegativeBackoff(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcherController(Config{
		Concurrency:   1,
		Timeout:       5 * time.Second,
		MaxAttempts:   2,
		BackoffBase:   -100 * time.Millisecond,
		BackoffFactor: 2.0,
	}, testLimiter(), nil, nil, nil, nil)

	result := f.FetchPage(context.Background(), server.URL)
	if result.Status != StatusFailed {
		t.Fatalf("Status = %v, want %v", result.Status, StatusFailed)
	}
	if got := atomic.LoadInt64(&requests); got != 2 {
		t.Errorf("请求次数 = %v, want %v", got, 2)
	}
}

// 测试传输错误同样按瞬时失败重试
func TestFetchPageTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立刻关闭，连接必然失败

	result := testFetcher(2).FetchPage(context.Background(), server.URL)
	if result.Status != StatusFailed {
		t.Fatalf("Status = %v, want %v", result.Status, StatusFailed)
	}
}

// 测试上下文取消后立即返回
func TestFetchPageCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := testFetcher(4).FetchPage(ctx, "http://127.0.0.1:0/")
	if result.Status != StatusFailed {
		t.Errorf("Status = %v, want %v", result.Status, StatusFailed)
	}
}
