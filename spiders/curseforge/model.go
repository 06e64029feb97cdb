package curseforge

import (
	"strings"
)

// CSVHeaders 数据集的固定18列，所有值按文本序列化，缺失为空
var CSVHeaders = []string{
	"id",           // 站点数字ID
	"slug",         // 人类可读标识，去重主键
	"name",         // 模组名称
	"description",  // 简介
	"created_at",   // 创建日期
	"updated_at",   // 最近更新日期
	"downloads",    // 总下载数
	"size",         // 最新发布文件大小，如 "1.38 MB"
	"game_version", // 主要支持的游戏版本
	"is_forge",     // 预留：加载器标记
	"is_fabric",    // 预留：加载器标记
	"is_neoforge",  // 预留：加载器标记
	"is_quilt",     // 预留：加载器标记
	"authors",      // "A; B; C"
	"categories",   // "Utility; Performance"
	"license",      // 许可证类型
	"project_url",  // 项目页链接
	"crawled_at",   // 采集时间
}

// KeyColumn 去重主键所在列
const KeyColumn = "slug"

// ModRecord 一条模组记录
// 列表页取不到的字段保持为空，写入CSV时序列化为空字符串
type ModRecord struct {
	ID          string   // 站点数字ID，列表页可能取不到
	Slug        string   // 去重主键，为空的记录会被拒绝写入
	Name        string   // 模组名称
	Description string   // 简介
	CreatedAt   string   // YYYY-MM-DD，解析失败为空
	UpdatedAt   string   // YYYY-MM-DD，解析失败为空
	Downloads   string   // 规范化后的整数文本
	Size        string   // 文件大小原文
	GameVersion string   // 游戏版本标签
	IsForge     string   // 预留字段，列表页无法判定
	IsFabric    string   // 预留字段
	IsNeoForge  string   // 预留字段
	IsQuilt     string   // 预留字段
	Authors     []string // 去重后的作者列表
	Categories  []string // 过滤停用词并去重后的分类
	License     string   // 许可证类型
	ProjectURL  string   // 项目页完整链接
	CrawledAt   string   // 采集时间，UTC秒级
}

// CSVRow 按CSVHeaders的顺序序列化为一行文本
func (r *ModRecord) CSVRow() []string {
	return []string{
		r.ID,
		r.Slug,
		r.Name,
		r.Description,
		r.CreatedAt,
		r.UpdatedAt,
		r.Downloads,
		r.Size,
		r.GameVersion,
		r.IsForge,
		r.IsFabric,
		r.IsNeoForge,
		r.IsQuilt,
		strings.Join(r.Authors, "; "),
		strings.Join(r.Categories, "; "),
		r.License,
		r.ProjectURL,
		r.CrawledAt,
	}
}

// Document 转换为MongoDB镜像文档
func (r *ModRecord) Document() map[string]interface{} {
	return map[string]interface{}{
		"id":           r.ID,
		"slug":         r.Slug,
		"name":         r.Name,
		"description":  r.Description,
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
		"downloads":    r.Downloads,
		"size":         r.Size,
		"game_version": r.GameVersion,
		"authors":      r.Authors,
		"categories":   r.Categories,
		"license":      r.License,
		"project_url":  r.ProjectURL,
		"crawled_at":   r.CrawledAt,
	}
}
