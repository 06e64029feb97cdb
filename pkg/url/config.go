package url

// Config 目录URL构造配置
type Config struct {
	BaseURL     string // 列表页基础URL
	PageSize    int    // 每页条数
	MaxPageSize int    // 站点允许的每页条数上限
}
