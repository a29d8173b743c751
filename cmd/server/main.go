// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"

	"music-copilot-go/internal/agent"
	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/config"
	"music-copilot-go/internal/handler"
	"music-copilot-go/internal/middleware"
	"music-copilot-go/internal/pipeline"
	"music-copilot-go/internal/repository"
	"music-copilot-go/internal/service"
	"music-copilot-go/internal/skill"
	"music-copilot-go/internal/tools"
	"music-copilot-go/internal/workflow"
	"music-copilot-go/pkg/database"
	"music-copilot-go/pkg/embedding"
	"music-copilot-go/pkg/es"
	"music-copilot-go/pkg/kafka"
	"music-copilot-go/pkg/llm"
	"music-copilot-go/pkg/log"
	"music-copilot-go/pkg/storage"
	"music-copilot-go/pkg/tika"
	"music-copilot-go/pkg/token"
)

// options 是命令行参数。
type options struct {
	Config string `short:"c" long:"config" description:"配置文件路径" default:"./configs/config.yaml"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// 1. 初始化配置
	config.Init(opts.Config)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化存储：MySQL + Redis，或仅内存
	var conversationRepo repository.ConversationRepository
	persistent := cfg.Database.Driver != "memory"
	if persistent {
		database.InitMySQL(cfg.Database.MySQL)
		database.InitRedis(cfg.Database.Redis)
		conversationRepo = repository.NewConversationRepository(database.DB)
		if ttl := cfg.Chat.HistoryCacheTTLMinutes; ttl > 0 {
			cache := repository.NewRedisHistoryCache(database.RDB, time.Duration(ttl)*time.Minute)
			conversationRepo = repository.NewCachedConversationRepository(conversationRepo, cache)
		}
	} else {
		log.Warnf("database.driver=memory，会话仅保存在进程内")
		conversationRepo = repository.NewMemoryConversationRepository()
	}
	if cfg.MinIO.Endpoint != "" {
		storage.InitMinIO(cfg.MinIO)
	}
	objectStore := service.NewMinioStore()

	// 4. 模型客户端
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatal("初始化模型客户端失败", err)
	}

	// 5. 知识库：需要 MySQL、Redis、MinIO、Elasticsearch 与 Kafka
	knowledgeOn := cfg.Knowledge.Enabled && persistent && objectStore != nil
	if cfg.Knowledge.Enabled && !knowledgeOn {
		log.Warnf("知识库需要 MySQL 与 MinIO，当前配置下已关闭")
	}
	var (
		searchService    service.SearchService
		knowledgeService service.KnowledgeService
		processor        *pipeline.Processor
	)
	if knowledgeOn {
		embeddingClient := embedding.NewClient(cfg.Embedding)
		dims := 0
		if embeddingClient != nil {
			dims = cfg.Embedding.Dimensions
		}
		if err := es.InitES(cfg.Elasticsearch, dims); err != nil {
			log.Fatal("Elasticsearch 初始化失败", err)
		}
		kafka.InitProducer(cfg.Kafka)
		defer func() {
			if err := kafka.CloseProducer(); err != nil {
				log.Errorf("关闭 Kafka 生产者失败: %v", err)
			}
		}()

		knowledgeRepo := repository.NewKnowledgeRepository(database.DB)
		indexer := pipeline.EsIndexer{IndexName: cfg.Elasticsearch.IndexName}
		searchService = service.NewSearchService(es.ESClient, cfg.Elasticsearch.IndexName, embeddingClient)
		knowledgeService = service.NewKnowledgeService(knowledgeRepo, objectStore,
			service.TaskPublisherFunc(kafka.ProduceKnowledgeTask), indexer)
		processor = pipeline.NewProcessor(pipeline.MinioSource{}, tika.NewClient(cfg.Tika),
			embeddingClient, indexer, knowledgeRepo, cfg.Knowledge)
	}

	// 6. 能力注册表、工作流与技能
	registry := capability.NewRegistry()
	var toolOpts []tools.Option
	if searchService != nil {
		toolOpts = append(toolOpts, tools.WithKnowledgeBase(searchService))
	}
	if err := tools.Register(registry, toolOpts...); err != nil {
		log.Fatal("注册工具失败", err)
	}
	registry.Seal()

	workflows, err := workflow.NewSet(workflow.Builtin()...)
	if err != nil {
		log.Fatal("加载工作流失败", err)
	}
	if err := workflows.Validate(registry); err != nil {
		log.Fatal("工作流引用了未注册的能力", err)
	}

	skills, err := skill.LoadDir(cfg.Chat.SkillsDir)
	if err != nil {
		log.Fatal("加载技能失败", err)
	}
	log.Infof("已注册 %d 个能力、%d 个工作流、%d 个技能", registry.Len(), len(workflows.All()), len(skills))

	// 7. 服务
	var followUps *agent.FollowUpGenerator
	if cfg.Chat.FollowUps {
		followUps = agent.NewFollowUpGenerator(llmClient)
	}
	chatService := service.NewChatService(
		conversationRepo,
		workflow.NewRouter(workflows),
		workflow.NewExecutor(registry),
		agent.NewToolLoop(llmClient, registry),
		followUps,
		agent.SystemPrompt(workflows.Describe(), skills),
		cfg.Chat,
	)
	conversationService := service.NewConversationService(conversationRepo, objectStore)

	// 8. 后台任务：Kafka 消费者与初始文档导入
	bgCtx, cancelBg := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	if knowledgeOn {
		bg.Add(2)
		go func() {
			defer bg.Done()
			kafka.StartConsumer(bgCtx, cfg.Kafka, processor, database.RDB)
		}()
		go func() {
			defer bg.Done()
			seedKnowledge(bgCtx, cfg.Knowledge.SeedDir, knowledgeService)
		}()
	}

	// 9. 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.CORS.AllowOrigins))

	handlers := handler.Handlers{
		Chat:         handler.NewChatHandler(chatService, token.NewTicketManager(cfg.Stream.TicketSecret, cfg.Stream.TicketExpireMinutes)),
		Conversation: handler.NewConversationHandler(conversationService),
		System:       handler.NewSystemHandler(cfg.Server.Version, skills),
	}
	if knowledgeOn {
		handlers.Knowledge = handler.NewKnowledgeHandler(knowledgeService)
		handlers.Search = handler.NewSearchHandler(searchService)
	}
	handler.RegisterRoutes(r, handlers)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	cancelBg()
	bg.Wait()
	log.Info("服务已优雅关闭")
}

// seedKnowledge 把目录下的文件按标准上传流程导入知识库，同名文档已存在时跳过。
func seedKnowledge(ctx context.Context, dir string, svc service.KnowledgeService) {
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("seedKnowledge: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	existing := map[string]bool{}
	docs, err := svc.List(ctx)
	if err != nil {
		log.Warnf("seedKnowledge: 读取已有文档失败，跳过初始化导入: %v", err)
		return
	}
	for _, d := range docs {
		existing[d.FileName] = true
	}

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if existing[name] {
			log.Infof("seedKnowledge: 已存在，跳过: %s", name)
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if err := service.ValidateKnowledgeFile(name, fi.Size()); err != nil {
			log.Infof("seedKnowledge: 跳过不支持的文件 %s: %v", path, err)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("seedKnowledge: 打开文件失败: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()

		doc, err := svc.Upload(ctx, service.KnowledgeUpload{
			FileName:    name,
			ContentType: tika.DetectMimeType(name),
			Size:        fi.Size(),
			Reader:      f,
		})
		if err != nil {
			log.Warnf("seedKnowledge: 导入失败: %s, err=%v", path, err)
			return nil
		}
		existing[name] = true
		log.Infof("seedKnowledge: 已提交入库: %s (id=%s)", name, doc.ID)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		log.Warnf("seedKnowledge: 遍历目录发生错误: %v", walkErr)
	}
}
