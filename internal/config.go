package internal

import "time"

type Config struct {
	Host       string `env:"HOST,default=0.0.0.0"`
	Port       int    `env:"PORT,default=8080"`
	LogLevel   string `env:"LOG_LEVEL,required=true"`
	InstanceID string `env:"INSTANCE_ID"`

	JWTSecret string `env:"JWT_SECRET,required=true"`
	JWTIssuer string `env:"JWT_ISSUER,required=true"`

	// Redis is optional. Without it the service runs single-instance:
	// in-memory cache, no cross-instance fan-out, Badger snapshots.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	BufferSize        int           `env:"BUFFER_SIZE,required=true"`
	CommandBufferSize int           `env:"COMMAND_BUFFER_SIZE,required=true"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE,required=true"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	PublishTimeout    time.Duration `env:"PUBLISH_TIMEOUT,required=true"`
	SnapshotTimeout   time.Duration `env:"SNAPSHOT_TIMEOUT,required=true"`
	SnapshotTTL       time.Duration `env:"SNAPSHOT_TTL,required=true"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT,required=true"`
	OperationTimeout  time.Duration `env:"OPERATION_TIMEOUT,required=true"`

	RateLimitMax    int64         `env:"RATE_LIMIT_MAX,required=true"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW,required=true"`

	IdleThreshold     time.Duration `env:"IDLE_THRESHOLD,required=true"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL,required=true"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,required=true"`
}
