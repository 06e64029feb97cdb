package curseforge

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// 分类停用词，站点把"All Mods"这类导航标签也混在分类里
var categoryStopWords = map[string]bool{
	"all mods": true,
}

// 英文月份缩写到月份序号
var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4,
	"may": 5, "jun": 6, "jul": 7, "aug": 8,
	"sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	// 数值加可选K/M/B后缀，如 "3.2M"
	downloadsPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)([KMBkmb])?$`)
	// 兜底：取第一段连续数字
	digitRunPattern = regexp.MustCompile(`[0-9]+`)
)

// PageParser 把目录页HTML解析成记录列表
// 空记录列表表示已到达目录末尾
type PageParser struct {
	extractor Extractor
	base      *url.URL // 用于把相对链接补全成绝对URL
}

// NewPageParser 创建页面解析器
// baseURL解析失败时相对链接原样保留
func NewPageParser(extractor Extractor, baseURL string) *PageParser {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}
	return &PageParser{extractor: extractor, base: base}
}

// ParsePage 解析单个目录页
// 单个字段提取失败只影响该字段，页面级意外统一转换为错误返回
func (p *PageParser) ParsePage(body string) (records []*ModRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("解析页面时发生严重错误: %v", r)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构建文档失败: %w", err)
	}

	p.extractor.Cards(doc).Each(func(i int, card *goquery.Selection) {
		records = append(records, p.buildRecord(card))
	})

	return records, nil
}

// buildRecord 从单个卡片构建记录
func (p *PageParser) buildRecord(card *goquery.Selection) *ModRecord {
	link := p.extractor.Link(card)

	return &ModRecord{
		ID:          p.extractor.ID(card),
		Slug:        slugFromLink(link),
		Name:        p.extractor.Name(card),
		Description: p.extractor.Description(card),
		CreatedAt:   ParseHumanDate(p.extractor.CreatedText(card)),
		UpdatedAt:   ParseHumanDate(p.extractor.UpdatedText(card)),
		Downloads:   ParseDownloads(p.extractor.DownloadsText(card)),
		Size:        p.extractor.SizeText(card),
		GameVersion: p.extractor.GameVersionText(card),
		Authors:     dedupeAuthors(p.extractor.Authors(card)),
		Categories:  filterCategories(p.extractor.Categories(card)),
		License:     p.extractor.License(card),
		ProjectURL:  p.absoluteURL(link),
		CrawledAt:   time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
}

// ParseDownloads 把下载数原文规范化为整数文本
// 支持千分位分隔符和K/M/B后缀(大小写均可)，带后缀的小数四舍五入
// 都匹配不上时退回到第一段连续数字，完全没有数字返回空
func ParseDownloads(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	normalized := strings.ReplaceAll(text, ",", "")
	normalized = strings.ReplaceAll(normalized, " ", "")

	if m := downloadsPattern.FindStringSubmatch(normalized); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			multiplier := 1.0
			switch strings.ToUpper(m[2]) {
			case "K":
				multiplier = 1e3
			case "M":
				multiplier = 1e6
			case "B":
				multiplier = 1e9
			}
			return strconv.FormatInt(int64(math.Round(value*multiplier)), 10)
		}
	}

	return digitRunPattern.FindString(text)
}

// ParseHumanDate 把 "Jan 5, 2023" 这类日期规范化为 "2023-01-05"
// 月份只看前三个字母，无法识别的格式返回空
func ParseHumanDate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
	if len(fields) != 3 {
		return ""
	}

	monthWord := strings.ToLower(fields[0])
	if len(monthWord) < 3 {
		return ""
	}
	month, ok := monthIndex[monthWord[:3]]
	if !ok {
		return ""
	}

	day, err := strconv.Atoi(fields[1])
	if err != nil || day < 1 || day > 31 {
		return ""
	}

	year, err := strconv.Atoi(fields[2])
	if err != nil || year < 1000 || year > 9999 {
		return ""
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// slugFromLink 从项目页链接的最后一段路径取slug
func slugFromLink(link string) string {
	if link == "" {
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}

	path := strings.TrimRight(parsed.Path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// absoluteURL 把相对链接补全成绝对URL
func (p *PageParser) absoluteURL(link string) string {
	if link == "" {
		return ""
	}
	if p.base == nil {
		return link
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	return p.base.ResolveReference(parsed).String()
}

// dedupeAuthors 去掉空白作者并按首次出现去重
func dedupeAuthors(authors []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, author := range authors {
		author = strings.TrimSpace(author)
		if author == "" || seen[author] {
			continue
		}
		seen[author] = true
		result = append(result, author)
	}
	return result
}

// filterCategories 过滤停用词并按首次出现去重
func filterCategories(categories []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		key := strings.ToLower(category)
		if categoryStopWords[key] || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, category)
	}
	return result
}
