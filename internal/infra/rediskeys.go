package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "pulse"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanNotifications — фан-аут уведомлений дашборда для внешних
	// потребителей (боты, пейджеры). Payload — JSON domain.Notification.
	RedisChanNotifications = RedisNamespace + ":notifications"
)
