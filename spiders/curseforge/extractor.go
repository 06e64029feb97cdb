package curseforge

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor 从目录页文档中提取卡片和各字段的原始文本
// 每个字段独立提取，单个字段失败不影响其他字段
type Extractor interface {
	Cards(doc *goquery.Document) *goquery.Selection
	ID(card *goquery.Selection) string
	Name(card *goquery.Selection) string
	Authors(card *goquery.Selection) []string
	Description(card *goquery.Selection) string
	CreatedText(card *goquery.Selection) string
	UpdatedText(card *goquery.Selection) string
	DownloadsText(card *goquery.Selection) string
	SizeText(card *goquery.Selection) string
	GameVersionText(card *goquery.Selection) string
	Categories(card *goquery.Selection) []string
	License(card *goquery.Selection) string
	Link(card *goquery.Selection) string
}

// CurseforgeExtractor 按固定版面提取CurseForge目录页
type CurseforgeExtractor struct{}

// NewCurseforgeExtractor 创建提取器
func NewCurseforgeExtractor() *CurseforgeExtractor {
	return &CurseforgeExtractor{}
}

// Cards 定位页面上的全部模组卡片
func (e *CurseforgeExtractor) Cards(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div.project-card")
}

// ID 站点数字ID，列表页通过data属性暴露，可能缺失
func (e *CurseforgeExtractor) ID(card *goquery.Selection) string {
	return strings.TrimSpace(card.AttrOr("data-project-id", ""))
}

// Name 模组名称
func (e *CurseforgeExtractor) Name(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".name").First().Text())
}

// Authors 作者名列表，保持页面顺序
func (e *CurseforgeExtractor) Authors(card *goquery.Selection) []string {
	var authors []string
	card.Find(".author-name").Each(func(i int, s *goquery.Selection) {
		authors = append(authors, strings.TrimSpace(s.Text()))
	})
	return authors
}

// Description 简介
func (e *CurseforgeExtractor) Description(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".description").First().Text())
}

// CreatedText 创建日期原文，如 "Jan 5, 2023"
func (e *CurseforgeExtractor) CreatedText(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".detail-created span").First().Text())
}

// UpdatedText 最近更新日期原文
func (e *CurseforgeExtractor) UpdatedText(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".detail-updated span").First().Text())
}

// DownloadsText 下载数原文，如 "3.2M" 或 "12,345"
func (e *CurseforgeExtractor) DownloadsText(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".detail-downloads").First().Text())
}

// SizeText 最新发布文件大小原文
func (e *CurseforgeExtractor) SizeText(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".detail-size").First().Text())
}

// GameVersionText 游戏版本标签
func (e *CurseforgeExtractor) GameVersionText(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".detail-game-version").First().Text())
}

// Categories 分类标签列表，保持页面顺序
func (e *CurseforgeExtractor) Categories(card *goquery.Selection) []string {
	var categories []string
	card.Find(".categories a").Each(func(i int, s *goquery.Selection) {
		categories = append(categories, strings.TrimSpace(s.Text()))
	})
	return categories
}

// License 许可证类型，列表页不总是展示
func (e *CurseforgeExtractor) License(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find(".detail-license").First().Text())
}

// Link 项目页链接，可能是相对路径
func (e *CurseforgeExtractor) Link(card *goquery.Selection) string {
	return strings.TrimSpace(card.Find("a.overlay-link").First().AttrOr("href", ""))
}
