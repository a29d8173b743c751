// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"music-copilot-go/internal/config"
	"music-copilot-go/pkg/log"
	"music-copilot-go/pkg/tasks"
)

// MaxAttempts 是单个入库任务的最大尝试次数，达到后提交 offset 放弃重试。
const MaxAttempts = 3

// TaskProcessor 处理一条知识入库任务，消费者与具体流水线实现解耦。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.KnowledgeIngestTask) error
}

var producer *kafka.Writer

func brokers(cfg config.KafkaConfig) []string {
	return strings.Split(cfg.Brokers, ",")
}

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// ProduceKnowledgeTask 发送一个知识入库任务，以文档 ID 作为消息 key。
func ProduceKnowledgeTask(ctx context.Context, task tasks.KnowledgeIngestTask) error {
	if producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocumentID),
		Value: taskBytes,
	})
}

func attemptsKey(documentID string) string {
	return fmt.Sprintf("kafka:attempts:%s", documentID)
}

// StartConsumer 启动消费者并阻塞直到 ctx 结束。任务失败时用 Redis 计数，达到 MaxAttempts 后提交 offset。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	consume(ctx, r, processor, rdb)
}

// messageReader 是 consume 依赖的 *kafka.Reader 方法集。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// fetchRetryDelay 是读取消息失败后的等待时间。
var fetchRetryDelay = 3 * time.Second

func consume(ctx context.Context, r messageReader, processor TaskProcessor, rdb *redis.Client) {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("从 Kafka 读取消息失败，%s 后重试: %v", fetchRetryDelay, err)
			select {
			case <-ctx.Done():
				log.Info("Kafka 消费者已停止")
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.KnowledgeIngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil || task.DocumentID == "" {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		log.Infof("开始处理知识入库任务: DocumentID=%s, FileName=%s", task.DocumentID, task.FileName)
		if !handle(ctx, processor, rdb, task) {
			// ctx 已结束且任务未完成，不提交 offset，重启后重新消费
			return
		}
		commit(ctx, r, m)
	}
}

// handle 处理任务并在失败时原地重试，失败次数记录在 Redis 中以便跨进程重启累计。
// 返回 false 表示 ctx 已结束且任务未完成。
func handle(ctx context.Context, processor TaskProcessor, rdb *redis.Client, task tasks.KnowledgeIngestTask) bool {
	key := attemptsKey(task.DocumentID)
	for {
		err := processor.Process(ctx, task)
		if err == nil {
			log.Infof("知识入库任务处理成功: DocumentID=%s", task.DocumentID)
			_ = rdb.Del(ctx, key).Err()
			return true
		}
		log.Errorf("处理知识入库任务失败: DocumentID=%s, Error: %v", task.DocumentID, err)
		if ctx.Err() != nil {
			return false
		}

		attempts, incErr := rdb.Incr(ctx, key).Result()
		if incErr != nil {
			// 无法计数时不再重试
			log.Warnf("记录任务失败次数失败: %v", incErr)
			attempts = MaxAttempts
		} else {
			_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
		}
		if attempts >= MaxAttempts {
			log.Errorf("知识入库任务多次失败(>=%d)，提交 offset 终止重试: DocumentID=%s", MaxAttempts, task.DocumentID)
			_ = rdb.Del(ctx, key).Err()
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempts) * 2 * time.Second):
		}
	}
}

func commit(ctx context.Context, r messageReader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
