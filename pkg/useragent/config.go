package useragent

// Config UA控制器配置
type Config struct {
	DefaultUA string // 列表为空或权重异常时使用的默认UA
}
