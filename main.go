package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"curse_spider/config"
	"curse_spider/controllers"
	"curse_spider/internal/spider"
	"curse_spider/spiders/curseforge"
)

func main() {
	os.Exit(run())
}

// run 执行整个采集流程并返回进程退出码
// os.Exit只在main里调用，保证日志文件在退出前被关闭
func run() int {
	// 初始化配置，路径可用环境变量覆盖
	if err := config.LoadConfig(os.Getenv("SPIDER_CONFIG")); err != nil {
		log.Printf("配置初始化失败: %v", err)
		return 1
	}
	cfg := &config.GlobalConfig

	// 创建并初始化日志管理器
	logger := controllers.NewLoggerManager()
	defer logger.Close() // 确保退出前关闭日志文件
	logger.SetLogLevel("INFO")
	if err := logger.SetLogFile(cfg.Spider.LogPath); err != nil {
		log.Printf("打开日志文件失败: %v", err)
		return 1
	}

	// 组装爬虫实例
	curse, err := curseforge.New(cfg, logger)
	if err != nil {
		logger.Log("ERROR", "爬虫组装失败: "+err.Error())
		return 1
	}

	// 注册爬虫，便于后续按名称调度
	registry := spider.NewSpiderRegistry()
	registry.RegisterSpider(curse.Name, curse)

	// 收到SIGINT/SIGTERM后取消上下文，爬虫尽快收尾
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

	// 创建任务管理器，设置最大并发任务数为 1
	// 任务内的错误记录下来，Wait之后转换成非零退出码
	taskManager := controllers.NewTaskManager(1)
	var runErr error
	if err := taskManager.StartTask(ctx, curse.Name, func(taskCtx context.Context) {
		if err := spider.Execute(taskCtx, curse, curse.Timeout); err != nil {
			logger.Log("ERROR", "爬虫运行失败: "+err.Error())
			runErr = err
		}
	}); err != nil {
		logger.Log("ERROR", "启动任务失败: "+err.Error())
		return 1
	}

	logger.Log("INFO", "爬虫任务已启动，等待完成...")
	taskManager.Wait()

	if runErr != nil {
		return 1
	}
	return 0
}
