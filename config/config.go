// Package config 提供爬虫全局配置的加载和校验
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// 默认值来自 CurseForge 数据集采集任务
const (
	DefaultOutputPath = "curseforge_dataset.csv"
	DefaultLogPath    = "curseforge.log"
	DefaultBaseURL    = "https://www.curseforge.com/minecraft/mc-mods"

	// DefaultUserAgent 默认桌面浏览器UA
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/126.0.0.0 Safari/537.36"

	// MaxPageSize 站点允许的最大每页条数
	MaxPageSize = 50
)

// SpiderConfig 爬虫任务配置
type SpiderConfig struct {
	StartPage   int    `yaml:"start_page"`  // 起始页码，从1开始
	PageCount   int    `yaml:"page_count"`  // 采集页数，until_end为true时忽略
	UntilEnd    bool   `yaml:"until_end"`   // 是否一直采集到目录自然结束
	PageSize    int    `yaml:"page_size"`   // 每页条数，超过站点上限会被收紧
	Concurrency int    `yaml:"concurrency"` // 并发请求上限，最小为1
	OutputPath  string `yaml:"output_path"` // CSV输出文件路径
	LogPath     string `yaml:"log_path"`    // 日志文件路径
	RenderJS    bool   `yaml:"render_js"`   // 是否使用浏览器渲染页面
}

// FetcherConfig 请求器配置
type FetcherConfig struct {
	TimeoutSec    int     `yaml:"timeout_sec"`     // 单次请求总超时(秒)
	MaxAttempts   int     `yaml:"max_attempts"`    // 单页最大尝试次数
	DelayBaseMs   int     `yaml:"delay_base_ms"`   // 礼貌延迟基础值(毫秒)
	DelayJitterMs int     `yaml:"delay_jitter_ms"` // 礼貌延迟随机抖动上限(毫秒)
	BackoffBaseMs int     `yaml:"backoff_base_ms"` // 重试退避基础值(毫秒)
	BackoffFactor float64 `yaml:"backoff_factor"`  // 重试退避增长因子
}

// UserAgentEntry 带权重的UA条目
type UserAgentEntry struct {
	Value  string `yaml:"value"`  // UA字符串
	Weight int    `yaml:"weight"` // 使用权重
}

// RedisConfig Redis连接配置，Host为空时不启用分布式限流
type RedisConfig struct {
	Host       string `yaml:"host"`        // Redis服务器地址
	Port       int    `yaml:"port"`        // Redis服务器端口
	Password   string `yaml:"password"`    // Redis密码
	DB         int    `yaml:"db"`          // 数据库编号
	TimeoutSec int    `yaml:"timeout_sec"` // 连接超时(秒)
}

// MongoConfig MongoDB连接配置，URI为空时不启用镜像存储
type MongoConfig struct {
	URI        string `yaml:"uri"`         // 连接URI
	Database   string `yaml:"database"`    // 数据库名称
	Collection string `yaml:"collection"`  // 集合名称
	TimeoutSec int    `yaml:"timeout_sec"` // 连接超时(秒)
}

// CrawlabConfig Crawlab平台配置，Host为空时不上报
type CrawlabConfig struct {
	Host   string `yaml:"host"`    // Crawlab服务器地址
	ApiKey string `yaml:"api_key"` // API认证密钥
}

// Config 全局配置
type Config struct {
	Spider     SpiderConfig     `yaml:"spider"`
	Fetcher    FetcherConfig    `yaml:"fetcher"`
	BaseURL    string           `yaml:"base_url"`    // 目录列表页基础URL
	UserAgents []UserAgentEntry `yaml:"user_agents"` // UA轮换列表
	Proxies    []string         `yaml:"proxies"`     // 代理列表，为空时直连
	Redis      RedisConfig      `yaml:"redis"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Crawlab    CrawlabConfig    `yaml:"crawlab"`
}

var GlobalConfig Config

// LoadConfig 从指定路径加载配置文件
// path为空时使用 config/config.yaml
func LoadConfig(path string) error {
	if path == "" {
		path = "config/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	GlobalConfig = cfg
	return nil
}

// ApplyDefaults 填充未配置项的默认值
func (c *Config) ApplyDefaults() {
	if c.Spider.StartPage == 0 {
		c.Spider.StartPage = 1
	}
	if c.Spider.PageSize == 0 {
		c.Spider.PageSize = MaxPageSize
	}
	if c.Spider.OutputPath == "" {
		c.Spider.OutputPath = DefaultOutputPath
	}
	if c.Spider.LogPath == "" {
		c.Spider.LogPath = DefaultLogPath
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = []UserAgentEntry{{Value: DefaultUserAgent, Weight: 1}}
	}
	if c.Fetcher.TimeoutSec == 0 {
		c.Fetcher.TimeoutSec = 30
	}
	if c.Fetcher.MaxAttempts == 0 {
		c.Fetcher.MaxAttempts = 4
	}
	if c.Fetcher.DelayBaseMs == 0 {
		c.Fetcher.DelayBaseMs = 1000
	}
	if c.Fetcher.DelayJitterMs == 0 {
		c.Fetcher.DelayJitterMs = 500
	}
	if c.Fetcher.BackoffBaseMs == 0 {
		c.Fetcher.BackoffBaseMs = 1000
	}
	if c.Fetcher.BackoffFactor == 0 {
		c.Fetcher.BackoffFactor = 2.0
	}
}

// Validate 校验配置并收紧越界值
// 页数非法属于启动期致命错误，并发和每页条数只做收紧
func (c *Config) Validate() error {
	if c.Spider.StartPage < 1 {
		return fmt.Errorf("配置错误: start_page 必须不小于1, 当前为 %d", c.Spider.StartPage)
	}
	if c.Spider.PageCount < 0 {
		return fmt.Errorf("配置错误: page_count 不能为负数, 当前为 %d", c.Spider.PageCount)
	}
	if c.Spider.PageCount == 0 && !c.Spider.UntilEnd {
		return fmt.Errorf("配置错误: page_count 为0时必须开启 until_end")
	}
	if c.Spider.Concurrency < 1 {
		c.Spider.Concurrency = 1
	}
	if c.Spider.PageSize < 1 {
		c.Spider.PageSize = 1
	}
	if c.Spider.PageSize > MaxPageSize {
		c.Spider.PageSize = MaxPageSize
	}
	if c.Fetcher.MaxAttempts < 1 {
		return fmt.Errorf("配置错误: max_attempts 必须不小于1, 当前为 %d", c.Fetcher.MaxAttempts)
	}
	if c.Fetcher.BackoffFactor <= 1 {
		return fmt.Errorf("配置错误: backoff_factor 必须大于1, 当前为 %v", c.Fetcher.BackoffFactor)
	}
	if c.Fetcher.BackoffBaseMs < 0 {
		return fmt.Errorf("配置错误: backoff_base_ms 不能为负数, 当前为 %d", c.Fetcher.BackoffBaseMs)
	}
	if c.Fetcher.DelayBaseMs < 0 {
		return fmt.Errorf("配置错误: delay_base_ms 不能为负数, 当前为 %d", c.Fetcher.DelayBaseMs)
	}
	if c.Fetcher.DelayJitterMs < 0 {
		return fmt.Errorf("配置错误: delay_jitter_ms 不能为负数, 当前为 %d", c.Fetcher.DelayJitterMs)
	}
	return nil
}
