package kafka

import "time"

// Config содержит конфигурацию подключения к Kafka и топики, через которые
// push-провайдер доставляет события устройства.
type Config struct {
	// Enabled включает consumers; без Kafka токены приходят только через HTTP API
	Enabled bool `env:"KAFKA_ENABLED" envDefault:"false"`
	// Brokers список брокеров через запятую: "broker1:9092,broker2:9092".
	// Пустое значение заменяется дефолтом окружения (local: localhost:19092, docker: kafka:9092).
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	// TokenTopic события обновления registration token
	TokenTopic string `env:"KAFKA_TOKEN_TOPIC" envDefault:"push.token.refreshed"`
	// MessageTopic входящие push-сообщения для сохранения в notifications
	MessageTopic string `env:"KAFKA_MESSAGE_TOPIC" envDefault:"push.message.received"`
	// DLQTopic сообщения, которые не удалось разобрать или обработать
	DLQTopic string `env:"KAFKA_DLQ_TOPIC" envDefault:"providerhub.dlq"`
	// GroupID consumer group
	GroupID string `env:"KAFKA_GROUP_ID" envDefault:"providerhub"`
	// RetryMaxAttempts попыток обработки одного сообщения до DLQ
	RetryMaxAttempts int `env:"KAFKA_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	// RetryBackoffBase база экспоненциального backoff: base, 2*base, 4*base...
	RetryBackoffBase time.Duration `env:"KAFKA_RETRY_BACKOFF_BASE" envDefault:"1s"`
}

// DefaultConfig возвращает конфигурацию для локальной разработки
func DefaultConfig() Config {
	return Config{
		Brokers:          []string{"localhost:19092"},
		TokenTopic:       "push.token.refreshed",
		MessageTopic:     "push.message.received",
		DLQTopic:         "providerhub.dlq",
		GroupID:          "providerhub",
		RetryMaxAttempts: 3,
		RetryBackoffBase: time.Second,
	}
}
