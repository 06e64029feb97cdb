// Package curseforge 实现CurseForge模组目录的增量采集
// 生产者按页序抓取解析，消费者去重后追加写入CSV数据集
package curseforge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"curse_spider/config"
	"curse_spider/controllers"
	"curse_spider/internal/spider"
	"curse_spider/pkg/crawlab"
	"curse_spider/pkg/csvstore"
	"curse_spider/pkg/fetcher"
	"curse_spider/pkg/js"
	"curse_spider/pkg/mongodb"
	"curse_spider/pkg/proxy"
	"curse_spider/pkg/queue"
	"curse_spider/pkg/ratelimit"
	"curse_spider/pkg/redis"
	urlctl "curse_spider/pkg/url"
	"curse_spider/pkg/useragent"
)

// 运行结束状态
const (
	StateFinished = "finished" // 页数用尽或到达目录末尾
	StateAborted  = "aborted"  // 上下文取消，提前收尾
)

// PageLimit 页数限制，有限页数或一直采到目录自然结束
type PageLimit struct {
	count    int
	untilEnd bool
}

// FinitePages 采集固定页数
func FinitePages(n int) PageLimit {
	return PageLimit{count: n}
}

// UntilCatalogEnd 一直采集到目录返回空页
func UntilCatalogEnd() PageLimit {
	return PageLimit{untilEnd: true}
}

// Reached 判断已处理的页数是否达到上限
func (l PageLimit) Reached(processed int) bool {
	if l.untilEnd {
		return false
	}
	return processed >= l.count
}

// RunStats 一次运行的统计，结束后可上报到Crawlab
type RunStats struct {
	RunID        string  `json:"run_id"`        // 本次运行的唯一标识
	State        string  `json:"state"`         // 结束状态
	PagesOK      int64   `json:"pages_ok"`      // 成功解析的页数
	PagesSkipped int64   `json:"pages_skipped"` // 抓取失败跳过的页数
	PagesError   int64   `json:"pages_error"`   // 解析出错的页数
	RowsWritten  int64   `json:"rows_written"`  // 新写入的记录数
	Duplicates   int64   `json:"duplicates"`    // 去重丢弃的记录数
	Invalid      int64   `json:"invalid"`       // 缺少主键被拒绝的记录数
	DurationSec  float64 `json:"duration_sec"`  // 运行耗时(秒)

	startedAt time.Time
}

// CurseSpider CurseForge模组目录爬虫
type CurseSpider struct {
	spider.BaseSpider

	startPage int
	limit     PageLimit

	fetcher *fetcher.FetcherController
	parser  *PageParser
	urls    *urlctl.URLController
	store   *csvstore.Store
	queue   *queue.ResultQueue
	logger  *controllers.LoggerManager

	redisClient *redis.RedisClient // 可为nil
	renderer    *js.JSController   // 可为nil
	mongoClient *mongodb.MongoClient
	mongoDB     string
	mongoColl   string
	crawlab     *crawlab.Client // 可为nil

	keys  map[string]struct{} // 已入库主键，仅消费者协程访问
	stats RunStats
}

// New 按配置组装爬虫
// Redis/Mongo/Crawlab/浏览器渲染都是可选部件，未配置时留空
func New(cfg *config.Config, logger *controllers.LoggerManager) (*CurseSpider, error) {
	urls, err := urlctl.NewURLController(urlctl.Config{
		BaseURL:     cfg.BaseURL,
		PageSize:    cfg.Spider.PageSize,
		MaxPageSize: config.MaxPageSize,
	})
	if err != nil {
		return nil, err
	}

	var redisClient *redis.RedisClient
	if cfg.Redis.Host != "" {
		redisClient, err = redis.NewRedisClient(&redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  time.Duration(cfg.Redis.TimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, err
		}
	}

	delayBase := time.Duration(cfg.Fetcher.DelayBaseMs) * time.Millisecond
	if delayBase <= 0 {
		delayBase = time.Second
	}

	// 令牌桶速率跟着并发数和礼貌延迟走
	limiter := ratelimit.NewRateLimitController(redisClient, ratelimit.Config{
		RedisKeyPrefix: "curse_spider:ratelimit",
		Rate:           float64(cfg.Spider.Concurrency) * float64(time.Second) / float64(delayBase),
		Burst:          cfg.Spider.Concurrency,
		DelayBase:      delayBase,
		DelayJitter:    time.Duration(cfg.Fetcher.DelayJitterMs) * time.Millisecond,
		WindowSize:     time.Minute,
		WindowLimit:    cfg.Spider.Concurrency * 60,
	})

	uaEntries := make([]*useragent.UserAgent, 0, len(cfg.UserAgents))
	for _, entry := range cfg.UserAgents {
		uaEntries = append(uaEntries, &useragent.UserAgent{
			Value:  entry.Value,
			Weight: entry.Weight,
		})
	}
	userAgents := useragent.NewUserAgentController(useragent.Config{
		DefaultUA: config.DefaultUserAgent,
	}, uaEntries)

	var proxies *proxy.ProxyPool
	if len(cfg.Proxies) > 0 {
		proxies, err = proxy.NewProxyPool(cfg.Proxies)
		if err != nil {
			return nil, err
		}
	}

	var renderer *js.JSController
	if cfg.Spider.RenderJS {
		renderer, err = js.NewJSController(js.Config{
			PoolSize:    cfg.Spider.Concurrency,
			PageTimeout: time.Duration(cfg.Fetcher.TimeoutSec) * time.Second,
			UserAgent:   config.DefaultUserAgent,
		})
		if err != nil {
			return nil, err
		}
	}

	fetchCtl := fetcher.NewFetcherController(fetcher.Config{
		Concurrency:   cfg.Spider.Concurrency,
		Timeout:       time.Duration(cfg.Fetcher.TimeoutSec) * time.Second,
		MaxAttempts:   cfg.Fetcher.MaxAttempts,
		BackoffBase:   time.Duration(cfg.Fetcher.BackoffBaseMs) * time.Millisecond,
		BackoffFactor: cfg.Fetcher.BackoffFactor,
		WaitSelector:  "div.project-card",
	}, limiter, userAgents, proxies, renderer, logger)

	store, err := csvstore.NewStore(csvstore.Config{
		Path:      cfg.Spider.OutputPath,
		Headers:   CSVHeaders,
		KeyColumn: KeyColumn,
	})
	if err != nil {
		return nil, err
	}

	var mongoClient *mongodb.MongoClient
	if cfg.Mongo.URI != "" {
		mongoClient, err = mongodb.NewMongoClient(&mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  time.Duration(cfg.Mongo.TimeoutSec) * time.Second,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	var crawlabClient *crawlab.Client
	if cfg.Crawlab.Host != "" {
		crawlabClient = &crawlab.Client{
			BaseURL: cfg.Crawlab.Host,
			ApiKey:  cfg.Crawlab.ApiKey,
		}
	}

	limit := FinitePages(cfg.Spider.PageCount)
	if cfg.Spider.UntilEnd {
		limit = UntilCatalogEnd()
	}

	return &CurseSpider{
		BaseSpider: spider.BaseSpider{
			Name:        "curseforge",
			Description: "CurseForge Minecraft模组目录采集",
		},
		startPage:   cfg.Spider.StartPage,
		limit:       limit,
		fetcher:     fetchCtl,
		parser:      NewPageParser(NewCurseforgeExtractor(), cfg.BaseURL),
		urls:        urls,
		store:       store,
		queue:       queue.NewResultQueue(queue.Config{Capacity: 8 * cfg.Spider.Concurrency}),
		logger:      logger,
		redisClient: redisClient,
		renderer:    renderer,
		mongoClient: mongoClient,
		mongoDB:     cfg.Mongo.Database,
		mongoColl:   cfg.Mongo.Collection,
		crawlab:     crawlabClient,
	}, nil
}

// Init 回读输出文件中的已有主键，支撑跨运行去重
func (s *CurseSpider) Init() error {
	keys, err := s.store.LoadKeys()
	if err != nil {
		return fmt.Errorf("加载已有主键失败: %w", err)
	}
	s.keys = keys
	s.logger.Log("INFO", fmt.Sprintf("已加载 %d 个已有主键", len(keys)))
	return nil
}

// Run 启动消费者协程后在当前协程跑生产者
// 生产者结束后推入哨兵，等消费者清空队列再汇总
func (s *CurseSpider) Run(ctx context.Context) error {
	s.stats.RunID = uuid.New().String()
	s.stats.startedAt = time.Now()
	s.logger.Log("INFO", fmt.Sprintf("开始采集: run_id=%s 起始页=%d", s.stats.RunID, s.startPage))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runConsumer()
	}()

	s.stats.State = s.runProducer(ctx)

	// 哨兵必须送达，消费者才能清空队列后退出
	s.queue.PushDone()
	wg.Wait()

	s.stats.DurationSec = time.Since(s.stats.startedAt).Seconds()
	s.logger.Log("INFO", fmt.Sprintf(
		"采集结束: state=%s 成功页=%d 跳过页=%d 出错页=%d 新增=%d 重复=%d 无效=%d 耗时=%.1fs",
		s.stats.State, s.stats.PagesOK, s.stats.PagesSkipped, s.stats.PagesError,
		s.stats.RowsWritten, s.stats.Duplicates, s.stats.Invalid, s.stats.DurationSec))

	if s.crawlab != nil {
		if err := s.crawlab.UploadRunStats(s.Name, s.stats); err != nil {
			s.logger.Log("WARN", fmt.Sprintf("上报运行统计失败: %v", err))
		}
	}
	return nil
}

// Cleanup 关闭存储和所有外部连接
func (s *CurseSpider) Cleanup() error {
	if s.renderer != nil {
		s.renderer.Close()
	}
	if s.mongoClient != nil {
		if err := s.mongoClient.Close(); err != nil {
			s.logger.Log("WARN", fmt.Sprintf("关闭MongoDB连接失败: %v", err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Log("WARN", fmt.Sprintf("关闭Redis连接失败: %v", err))
		}
	}
	return s.store.Close()
}

// Stats 返回运行统计快照，Run返回后读取
func (s *CurseSpider) Stats() RunStats {
	return s.stats
}

// runProducer 按页序抓取并解析，把结果单元推入队列
// 单页失败只产生skip单元，空页视为目录末尾提前结束
func (s *CurseSpider) runProducer(ctx context.Context) string {
	page := s.startPage
	processed := 0

	for !s.limit.Reached(processed) {
		select {
		case <-ctx.Done():
			s.logger.Log("WARN", "收到取消信号，生产者提前收尾")
			return StateAborted
		default:
		}

		pageURL := s.urls.PageURL(page)
		result := s.fetcher.FetchPage(ctx, pageURL)

		var unit *queue.PageResult
		switch result.Status {
		case fetcher.StatusOK:
			records, err := s.parser.ParsePage(result.Body)
			if err != nil {
				unit = &queue.PageResult{Page: page, Kind: queue.KindError, Err: err.Error()}
			} else if len(records) == 0 {
				s.logger.Log("INFO", fmt.Sprintf("第%d页没有条目，已到达目录末尾", page))
				return StateFinished
			} else {
				unit = &queue.PageResult{Page: page, Kind: queue.KindData, Data: records}
			}
		default:
			// not_found和failed都按跳过处理，不终止整轮采集
			s.logger.Log("WARN", fmt.Sprintf("第%d页抓取未成功(%s, 尝试%d次)，跳过",
				page, result.Status, result.Attempts))
			unit = &queue.PageResult{Page: page, Kind: queue.KindSkip}
		}

		if err := s.queue.Push(ctx, unit); err != nil {
			s.logger.Log("WARN", fmt.Sprintf("推入第%d页结果失败: %v", page, err))
			return StateAborted
		}

		page++
		processed++
	}

	return StateFinished
}

// runConsumer 按队列顺序消费结果单元，直到收到哨兵
// 去重和写入都只在这个协程里发生，不需要加锁
func (s *CurseSpider) runConsumer() {
	for {
		result := s.queue.Pop()

		switch result.Kind {
		case queue.KindDone:
			return

		case queue.KindSkip:
			s.stats.PagesSkipped++
			s.logger.Log("INFO", fmt.Sprintf("第%d页已跳过", result.Page))

		case queue.KindError:
			s.stats.PagesError++
			s.logger.Log("ERROR", fmt.Sprintf("第%d页解析失败: %s", result.Page, result.Err))

		case queue.KindData:
			s.consumePage(result.Page, result.Data.([]*ModRecord))
		}
	}
}

// consumePage 处理一页的记录: 拒绝无主键、去重、落盘、可选镜像
func (s *CurseSpider) consumePage(page int, records []*ModRecord) {
	added := 0
	var mirror []interface{}

	for _, rec := range records {
		if rec.Slug == "" {
			s.stats.Invalid++
			s.logger.Log("WARN", fmt.Sprintf("第%d页存在缺少slug的条目，已拒绝写入", page))
			continue
		}
		if _, dup := s.keys[rec.Slug]; dup {
			s.stats.Duplicates++
			continue
		}

		if err := s.store.Append(rec.CSVRow()); err != nil {
			// 主键不入集合，下次运行还有机会补写
			s.logger.Log("ERROR", fmt.Sprintf("写入记录 %s 失败: %v", rec.Slug, err))
			continue
		}

		s.keys[rec.Slug] = struct{}{}
		s.stats.RowsWritten++
		added++

		doc := rec.Document()
		doc["run_id"] = s.stats.RunID
		mirror = append(mirror, doc)
	}

	if s.mongoClient != nil && len(mirror) > 0 {
		if err := s.mongoClient.SaveRecords(s.mongoDB, s.mongoColl, mirror); err != nil {
			s.logger.Log("WARN", fmt.Sprintf("第%d页镜像到MongoDB失败: %v", page, err))
		}
	}

	s.stats.PagesOK++
	s.logger.Log("INFO", fmt.Sprintf("第%d页完成: 新增%d条, 本次运行累计%d条",
		page, added, s.stats.RowsWritten))
}
