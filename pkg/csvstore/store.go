// Package csvstore 提供追加写入的CSV记录存储
// 文件以追加模式打开，中断的运行不会破坏已写入的行
package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Config CSV存储配置
type Config struct {
	Path      string   // CSV文件路径
	Headers   []string // 固定表头，所有值按文本序列化
	KeyColumn string   // 主键所在列名，用于启动时回读
}

// Store CSV记录存储
type Store struct {
	config Config
	file   *os.File    // 追加模式的写句柄
	writer *csv.Writer // CSV写入器，每行写入后刷新
	mu     sync.Mutex  // 保护写入
	rows   int64       // 本次运行写入的行数
}

// NewStore 打开(或创建)CSV存储
// 新文件或空文件会先写入表头
func NewStore(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("CSV路径不能为空")
	}
	if len(config.Headers) == 0 {
		return nil, fmt.Errorf("CSV表头不能为空")
	}

	if dir := filepath.Dir(config.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建输出目录失败: %w", err)
		}
	}

	file, err := os.OpenFile(config.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开CSV文件失败: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("读取CSV文件信息失败: %w", err)
	}

	store := &Store{
		config: config,
		file:   file,
		writer: csv.NewWriter(file),
	}

	// 空文件先写表头
	if info.Size() == 0 {
		if err := store.writeRow(config.Headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("写入CSV表头失败: %w", err)
		}
	}

	return store, nil
}

// LoadKeys 回读文件中所有已存在的主键
// 每次运行启动时调用一次，用于去重
func (s *Store) LoadKeys() (map[string]struct{}, error) {
	keys := make(map[string]struct{})

	file, err := os.Open(s.config.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, fmt.Errorf("打开CSV文件失败: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// 容忍历史数据中的列数差异
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取CSV表头失败: %w", err)
	}

	keyIdx := -1
	for i, name := range header {
		if name == s.config.KeyColumn {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("CSV表头中找不到主键列 %s", s.config.KeyColumn)
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 尾部可能有中断运行留下的残行，跳过并继续
			log.Printf("跳过无法解析的CSV行: %v", err)
			continue
		}
		if keyIdx < len(row) && row[keyIdx] != "" {
			keys[row[keyIdx]] = struct{}{}
		}
	}

	log.Printf("从 %s 加载了 %d 个已有主键", s.config.Path, len(keys))
	return keys, nil
}

// Append 追加一条记录并立即刷新到磁盘
func (s *Store) Append(row []string) error {
	if len(row) != len(s.config.Headers) {
		return fmt.Errorf("CSV行列数不匹配: 期望 %d, 实际 %d", len(s.config.Headers), len(row))
	}

	if err := s.writeRow(row); err != nil {
		return fmt.Errorf("追加CSV行失败: %w", err)
	}

	s.mu.Lock()
	s.rows++
	s.mu.Unlock()
	return nil
}

// Rows 返回本次运行写入的行数
func (s *Store) Rows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Close 刷新并关闭存储
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// writeRow 写一行并刷新
// 每行都刷新，保证中断时已写入的行完整落盘
func (s *Store) writeRow(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}
