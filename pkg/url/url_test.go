package url

import (
	"strings"
	"testing"
)

// 测试分页URL构造
func TestPageURL(t *testing.T) {
	uc, err := NewURLController(Config{
		BaseURL:     "https://www.curseforge.com/minecraft/mc-mods",
		PageSize:    50,
		MaxPageSize: 50,
	})
	if err != nil {
		t.Fatalf("NewURLController() error = %v", err)
	}

	got := uc.PageURL(3)
	if !strings.Contains(got, "page=3") {
		t.Errorf("PageURL(3) = %v, 缺少 page=3", got)
	}
	if !strings.Contains(got, "pageSize=50") {
		t.Errorf("PageURL(3) = %v, 缺少 pageSize=50", got)
	}
}

// 测试每页条数收紧
func TestPageSizeClamp(t *testing.T) {
	tests := []struct {
		name     string
		pageSize int
		want     int
	}{
		{name: "超过上限", pageSize: 500, want: 50},
		{name: "为零", pageSize: 0, want: 1},
		{name: "负数", pageSize: -3, want: 1},
		{name: "正常值", pageSize: 20, want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, err := NewURLController(Config{
				BaseURL:     "https://example.com/list",
				PageSize:    tt.pageSize,
				MaxPageSize: 50,
			})
			if err != nil {
				t.Fatalf("NewURLController() error = %v", err)
			}
			if uc.PageSize() != tt.want {
				t.Errorf("PageSize() = %v, want %v", uc.PageSize(), tt.want)
			}
		})
	}
}

// 测试非法基础URL
func TestInvalidBaseURL(t *testing.T) {
	if _, err := NewURLController(Config{BaseURL: "not-a-url"}); err == nil {
		t.Error("NewURLController() 应该返回错误")
	}
}

// 测试基础URL已有查询参数时被保留
func TestPageURLKeepsQuery(t *testing.T) {
	uc, err := NewURLController(Config{
		BaseURL:  "https://example.com/list?class=mc-mods",
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("NewURLController() error = %v", err)
	}

	got := uc.PageURL(1)
	if !strings.Contains(got, "class=mc-mods") {
		t.Errorf("PageURL(1) = %v, 丢失了原有查询参数", got)
	}
}
