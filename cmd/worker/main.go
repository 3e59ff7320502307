package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/naphat-c/nacc-digitizer/config"
	"github.com/naphat-c/nacc-digitizer/internal/impute"
	"github.com/naphat-c/nacc-digitizer/internal/pipeline"
	"github.com/naphat-c/nacc-digitizer/pkg/genai"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
	"github.com/naphat-c/nacc-digitizer/pkg/queue"
	"github.com/naphat-c/nacc-digitizer/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "pipeline config file (yaml)")
	flag.Parse()

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 读取管道配置
	pipelineCfg, err := config.LoadPipelineConfig(*configPath)
	if err != nil {
		log.Error("Failed to load pipeline config", logger.Error(err))
		os.Exit(1)
	}

	// 创建理解服务客户端
	genaiCfg := config.GetGenAIConfig()
	clientCfg := genai.DefaultConfig()
	clientCfg.APIKey = genaiCfg.APIKey
	clientCfg.Model = genaiCfg.Model
	clientCfg.Endpoint = genaiCfg.Endpoint
	client := genai.NewClient(clientCfg)
	defer client.Close()

	// 组装管道
	opts := &pipeline.Options{
		Backend:               pipelineCfg.Backend,
		UseImputation:         pipelineCfg.UseImputation,
		ImputationStrategy:    impute.Strategy(pipelineCfg.ImputationStrategy),
		MaxRetries:            pipelineCfg.MaxRetries,
		ValidateBeforeExtract: pipelineCfg.ValidateBeforeExtract,
		BatchConcurrency:      pipelineCfg.BatchConcurrency,
	}
	orchestrator, err := pipeline.New(client, nil, log, opts)
	if err != nil {
		log.Error("Failed to build pipeline", logger.Error(err))
		os.Exit(1)
	}
	defer orchestrator.Close()

	// 创建队列
	redisCfg := config.GetRedisConfig()
	q, err := queue.NewAsynqQueue(&queue.Config{
		RedisAddr:     redisCfg.Addr,
		RedisPassword: redisCfg.Password,
		RedisDB:       redisCfg.DB,
	})
	if err != nil {
		log.Error("Failed to create queue", logger.Error(err))
		os.Exit(1)
	}
	defer q.Close()

	// 创建 worker 配置
	workerCfg := &worker.Config{
		RedisAddr:     redisCfg.Addr,
		RedisPassword: redisCfg.Password,
		RedisDB:       redisCfg.DB,
		Concurrency:   10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}

	// 创建 worker
	digitizeWorker, err := worker.NewDigitizeWorker(workerCfg, orchestrator, q, log)
	if err != nil {
		log.Error("Failed to create digitize worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 worker
	if err := digitizeWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	digitizeWorker.Stop()
	log.Info("Worker stopped")
}
