package queue

// Config 结果队列配置
type Config struct {
	Capacity int // 队列容量，写满后生产方阻塞形成背压
}
