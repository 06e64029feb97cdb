// 命令行入口，支持用参数覆盖配置文件
// 用法示例: curseforge -start 1 -pages 100 -concurrency 4 -output mods.csv
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"curse_spider/config"
	"curse_spider/controllers"
	"curse_spider/internal/spider"
	"curse_spider/spiders/curseforge"
)

// options 命令行参数
type options struct {
	configPath  string
	startPage   int
	pageCount   int
	untilEnd    bool
	pageSize    int
	concurrency int
	outputPath  string
	logPath     string
	renderJS    bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("curseforge", flag.ContinueOnError)
	opts := &options{}

	fs.StringVar(&opts.configPath, "config", "", "配置文件路径，为空时使用内置默认值")
	fs.IntVar(&opts.startPage, "start", 0, "起始页码，覆盖配置文件")
	fs.IntVar(&opts.pageCount, "pages", 0, "采集页数，覆盖配置文件")
	fs.BoolVar(&opts.untilEnd, "until-end", false, "一直采集到目录末尾")
	fs.IntVar(&opts.pageSize, "page-size", 0, "每页条数，覆盖配置文件")
	fs.IntVar(&opts.concurrency, "concurrency", 0, "并发请求上限，覆盖配置文件")
	fs.StringVar(&opts.outputPath, "output", "", "CSV输出路径，覆盖配置文件")
	fs.StringVar(&opts.logPath, "log", "", "日志文件路径，覆盖配置文件")
	fs.BoolVar(&opts.renderJS, "render", false, "使用浏览器渲染页面")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// buildConfig 加载配置文件并套用命令行覆盖
// 没有配置文件时从默认值起步，零值参数不覆盖
func buildConfig(opts *options) (*config.Config, error) {
	var cfg config.Config

	if opts.configPath != "" {
		if err := config.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
		cfg = config.GlobalConfig
	} else {
		// 默认采到目录末尾，除非命令行给了页数
		cfg.Spider.UntilEnd = true
	}

	if opts.startPage > 0 {
		cfg.Spider.StartPage = opts.startPage
	}
	if opts.pageCount > 0 {
		cfg.Spider.PageCount = opts.pageCount
		cfg.Spider.UntilEnd = false
	}
	if opts.untilEnd {
		cfg.Spider.UntilEnd = true
	}
	if opts.pageSize > 0 {
		cfg.Spider.PageSize = opts.pageSize
	}
	if opts.concurrency > 0 {
		cfg.Spider.Concurrency = opts.concurrency
	}
	if opts.outputPath != "" {
		cfg.Spider.OutputPath = opts.outputPath
	}
	if opts.logPath != "" {
		cfg.Spider.LogPath = opts.logPath
	}
	if opts.renderJS {
		cfg.Spider.RenderJS = true
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 执行采集流程并返回进程退出码
// os.Exit只在main里调用，错误路径同样会走到deferred的日志关闭
func run(opts *options) int {
	cfg, err := buildConfig(opts)
	if err != nil {
		log.Printf("配置错误: %v", err)
		return 1
	}

	logger := controllers.NewLoggerManager()
	defer logger.Close()
	logger.SetLogLevel("INFO")
	if err := logger.SetLogFile(cfg.Spider.LogPath); err != nil {
		log.Printf("打开日志文件失败: %v", err)
		return 1
	}

	curse, err := curseforge.New(cfg, logger)
	if err != nil {
		logger.Log("ERROR", "爬虫组装失败: "+err.Error())
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			logger.Log("WARN", "收到信号 "+sig.String()+"，开始收尾")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := spider.Execute(ctx, curse, curse.Timeout); err != nil {
		logger.Log("ERROR", "爬虫运行失败: "+err.Error())
		return 1
	}
	return 0
}
