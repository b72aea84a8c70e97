package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MQ         MQConfig         `mapstructure:"mq"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Log        logger.Config    `mapstructure:"log"`
}

type AppConfig struct {
	Env      string `mapstructure:"env" validate:"required,oneof=development test production"`
	HttpPort string `mapstructure:"http_port" validate:"required"`
}

type DBConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// DSN 返回 gorm postgres 驱动使用的连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// URL 返回 golang-migrate 使用的连接串
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// MQConfig 跨进程事件 (outbox relay) 的传输方式
type MQConfig struct {
	Type          string `mapstructure:"type" validate:"oneof=redis kafka none"` // "redis" / "kafka" / "none"
	OpenedTopic   string `mapstructure:"opened_topic" validate:"required"`
	ConsumeOpened bool   `mapstructure:"consume_opened"` // 是否同时消费开盒事件驱动铸造
	ConsumerGroup string `mapstructure:"consumer_group"` // Kafka GroupID / Redis Streams 消费组
	ConsumerName  string `mapstructure:"consumer_name"`
}

type ChainConfig struct {
	Type      string        `mapstructure:"type" validate:"required"` // MOCK / JSONRPC
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RpcUrl    string        `mapstructure:"rpc_url"`
	RpcMethod string        `mapstructure:"rpc_method"`
}

type DispatcherConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"gt=0"`
	Workers   int `mapstructure:"workers" validate:"gt=0"`
}

type ReconcileConfig struct {
	Spec        string        `mapstructure:"spec" validate:"required"` // cron 表达式
	PageSize    int           `mapstructure:"page_size" validate:"gt=0"`
	MaxPages    int           `mapstructure:"max_pages" validate:"gte=0"` // 0 表示直到空页
	StaleAfter  time.Duration `mapstructure:"stale_after" validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
	MintQPS     float64       `mapstructure:"mint_qps" validate:"gte=0"` // 0 表示不限速
	LockTTL     time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

type RelayConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	BatchSize   int           `mapstructure:"batch_size" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0"`
}

var Global Config

var errInvalid = errors.New("invalid config")

func Init() {
	// 本地开发时允许使用 .env 覆盖环境变量
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	v.AddConfigPath(".")      // optionally look for config in the working directory
	v.AddConfigPath("./config")

	cfg, err := load(v)
	if err != nil {
		log.Fatalf("Fatal error config: %s \n", err)
	}
	Global = *cfg

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// load 读取配置文件 + 环境变量，并做字段校验
func load(v *viper.Viper) (*Config, error) {
	// 环境变量设置
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalid, err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "blindbox_user")
	v.SetDefault("db.password", "blindbox_password")
	v.SetDefault("db.name", "blindbox_db")
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.max_open_conns", 100)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("mq.type", "redis")
	v.SetDefault("mq.opened_topic", "blindbox_events_opened")
	v.SetDefault("mq.consume_opened", false)
	v.SetDefault("mq.consumer_group", "blindbox_mint_group")
	v.SetDefault("mq.consumer_name", "mint-0")

	v.SetDefault("chain.type", "MOCK")
	v.SetDefault("chain.timeout", 10*time.Second)
	v.SetDefault("chain.rpc_method", "nft_mint")

	v.SetDefault("dispatcher.queue_size", 1024)
	v.SetDefault("dispatcher.workers", 8)

	v.SetDefault("reconcile.spec", "@every 3m")
	v.SetDefault("reconcile.page_size", 100)
	v.SetDefault("reconcile.max_pages", 0)
	v.SetDefault("reconcile.stale_after", 5*time.Minute)
	v.SetDefault("reconcile.concurrency", 4)
	v.SetDefault("reconcile.mint_qps", 20)
	v.SetDefault("reconcile.lock_ttl", 10*time.Minute)

	v.SetDefault("relay.interval", 500*time.Millisecond)
	v.SetDefault("relay.batch_size", 50)
	v.SetDefault("relay.max_attempts", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
}
