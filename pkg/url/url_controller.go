// Package url 提供目录分页URL的构造
package url

import (
	"fmt"
	"net/url"
	"strconv"
)

// URLController 目录URL构造器
// 负责把页码转换成完整的列表页请求地址
type URLController struct {
	base     *url.URL // 解析后的基础URL
	pageSize int      // 收紧后的每页条数
}

// NewURLController 创建新的URL构造器
// 基础URL非法时返回错误，每页条数会被收紧到[1, MaxPageSize]
func NewURLController(config Config) (*URLController, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("解析基础URL失败: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("基础URL缺少协议或主机: %s", config.BaseURL)
	}

	pageSize := config.PageSize
	if config.MaxPageSize > 0 && pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}

	return &URLController{
		base:     base,
		pageSize: pageSize,
	}, nil
}

// PageURL 构造指定页码的列表页URL
func (uc *URLController) PageURL(page int) string {
	u := *uc.base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(uc.pageSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// PageSize 返回收紧后的每页条数
func (uc *URLController) PageSize() int {
	return uc.pageSize
}
