package broker

import (
	"fmt"
	"time"
)

// Default queue names shared by both sides of the broker transport.
const (
	DefaultRequestsQueue = "avg_requests"
	DefaultResultsQueue  = "avg_results"
)

// Config controls the RabbitMQ transport.
type Config struct {
	// URL is the full AMQP URL. When empty it is assembled from Host,
	// Port, Username and Password.
	URL string

	Host     string
	Port     int
	Username string
	Password string

	// RequestsQueue carries calculation requests to remote workers.
	RequestsQueue string

	// ResultsQueue carries computed results back.
	ResultsQueue string

	// MaxQueueLength is the request-queue depth above which the
	// publisher refuses to add more work.
	MaxQueueLength int

	// PublishWaitTimeout bounds how long a publish waits for the queue
	// depth to drop below MaxQueueLength before giving up.
	PublishWaitTimeout time.Duration

	// PollInterval caps the sleep between queue depth checks. The
	// publisher sleeps the smaller of this and the time remaining.
	PollInterval time.Duration

	// DialAttempts bounds connection attempts for consumers that must
	// fail fast at startup. DialDelay is the pause between attempts.
	DialAttempts int
	DialDelay    time.Duration
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               5672,
		Username:           "guest",
		Password:           "guest",
		RequestsQueue:      DefaultRequestsQueue,
		ResultsQueue:       DefaultResultsQueue,
		MaxQueueLength:     2,
		PublishWaitTimeout: time.Second,
		PollInterval:       250 * time.Millisecond,
		DialAttempts:       10,
		DialDelay:          5 * time.Second,
	}
}

// AMQPURL returns the dial URL, assembling it from parts when URL is
// not set explicitly.
func (c Config) AMQPURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}
