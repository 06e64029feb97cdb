// Package mongodb 提供MongoDB数据库操作的封装
// 用于把采集到的记录镜像一份到MongoDB
package mongodb

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoClient MongoDB客户端管理器
// 负责维护与MongoDB的连接和操作
type MongoClient struct {
	client *mongo.Client   // MongoDB官方客户端实例
	ctx    context.Context // 用于控制操作生命周期的上下文
}

// Config MongoDB连接配置
type Config struct {
	URI      string        // MongoDB连接字符串，格式如：mongodb://host:port
	Database string        // 要连接的数据库名称
	Timeout  time.Duration // 连接和操作的超时时间
}

// NewMongoClient 创建新的MongoDB客户端实例
func NewMongoClient(cfg *Config) (*MongoClient, error) {
	// 配置MongoDB客户端选项
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetWriteConcern(writeconcern.New(
			writeconcern.W(1),
			writeconcern.J(false),
			writeconcern.WTimeout(10*time.Second),
		)).
		SetMaxPoolSize(100).
		SetRetryWrites(true)

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	// 连接到MongoDB服务器
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("MongoDB连接失败: %w", err)
	}

	// 测试连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB Ping失败: %w", err)
	}

	log.Printf("MongoDB连接成功: %s", cfg.URI)

	return &MongoClient{
		client: client,
		ctx:    context.Background(),
	}, nil
}

// SaveRecords 批量保存记录到MongoDB
// 参数:
//   - database: 目标数据库名称
//   - collection: 目标集合名称
//   - records: 要保存的记录列表
//
// 返回:
//   - error: 如果保存失败则返回错误
func (m *MongoClient) SaveRecords(database, collection string, records []interface{}) error {
	if len(records) == 0 {
		return nil
	}

	// 获取指定的集合
	coll := m.client.Database(database).Collection(collection)

	// 配置写入选项
	opts := options.InsertMany().
		SetOrdered(false) // 使用无序写入，提高性能

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	// 使用批量写入，每批最多1000条
	batchSize := 1000
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		// 添加重试机制
		var err error
		for retries := 0; retries < 3; retries++ {
			_, err = coll.InsertMany(ctx, batch, opts)
			if err == nil {
				break
			}
			log.Printf("批量写入失败(第%d次重试): %v", retries+1, err)
			time.Sleep(time.Duration(retries+1) * time.Second)
		}
		if err != nil {
			return fmt.Errorf("保存到MongoDB失败: %w", err)
		}
	}

	return nil
}

// Close 关闭MongoDB连接
// 在程序结束时调用，确保资源被正确释放
func (m *MongoClient) Close() error {
	return m.client.Disconnect(m.ctx)
}
