package crawlab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client Crawlab API客户端
// 用于把运行结果上报到Crawlab平台
type Client struct {
	BaseURL string // Crawlab服务器地址
	ApiKey  string // API认证密钥
}

// UploadRunStats 将一次运行的统计信息上传到Crawlab平台
// spiderName: 爬虫名称，用于在Crawlab中标识数据来源
// stats: 运行统计，将被转换为JSON格式
func (c *Client) UploadRunStats(spiderName string, stats interface{}) error {
	// 构造API请求URL
	url := fmt.Sprintf("%s/api/spiders/%s/tasks", c.BaseURL, spiderName)

	// 将数据转换为JSON格式
	jsonData, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	// 创建HTTP请求
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	// 设置请求头
	req.Header.Set("Authorization", c.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	// 发送请求
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 检查响应状态
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload failed with status: %d", resp.StatusCode)
	}

	return nil
}
