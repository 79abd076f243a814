package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "NEOFLEET"

// ConfigLoader 配置加载器
// 优先级: 环境变量 > config.<env>.yaml > config.yaml > 默认值
type ConfigLoader struct {
	configPath string
	envPrefix  string
	envFiles   []string
	viper      *viper.Viper
}

// NewConfigLoader 创建配置加载器；configPath 可以是目录或具体文件
func NewConfigLoader(configPath, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = EnvPrefix
	}
	return &ConfigLoader{
		configPath: configPath,
		envPrefix:  envPrefix,
		envFiles:   []string{".env"},
		viper:      viper.New(),
	}
}

// WithEnvFiles 指定额外的 .env 文件
func (cl *ConfigLoader) WithEnvFiles(files ...string) *ConfigLoader {
	cl.envFiles = append(cl.envFiles, files...)
	return cl
}

// LoadConfig 加载配置
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	if err := NewEnvLoader(cl.envFiles...).Load(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cl.viper.SetConfigType("yaml")
	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cl.viper.AutomaticEnv()
	cl.setDefaults()

	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	var cfg Config
	if err := cl.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadConfigFile 找不到配置文件时只使用默认值和环境变量
func (cl *ConfigLoader) loadConfigFile() error {
	path := cl.configPath
	if path == "" {
		path = os.Getenv(cl.envPrefix + "_CONFIG_PATH")
	}

	if path != "" && filepath.Ext(path) != "" {
		cl.viper.SetConfigFile(path)
		return cl.viper.ReadInConfig()
	}

	if path != "" {
		cl.viper.AddConfigPath(path)
	}
	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")

	cl.viper.SetConfigName("config." + cl.Environment())
	err := cl.viper.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return err
	}

	cl.viper.SetConfigName("config")
	err = cl.viper.ReadInConfig()
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// Environment 运行环境
func (cl *ConfigLoader) Environment() string {
	if env := os.Getenv(cl.envPrefix + "_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("GO_ENV"); env != "" {
		return env
	}
	return "development"
}

// GetConfigPath 实际使用的配置文件，未找到时为空
func (cl *ConfigLoader) GetConfigPath() string {
	return cl.viper.ConfigFileUsed()
}

func (cl *ConfigLoader) setDefaults() {
	v := cl.viper

	v.SetDefault("app.name", "neofleet")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.prefix", "/api/v1")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "./logs/neofleet.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.caller", false)

	v.SetDefault("master.address", "localhost")
	v.SetDefault("master.port", 8081)
	v.SetDefault("master.protocol", "http")
	v.SetDefault("master.prefix", "/api/v1")
	v.SetDefault("master.request_timeout", "30s")
	v.SetDefault("master.retry_count", 3)
	v.SetDefault("master.retry_delay", "2s")
	v.SetDefault("master.skip_tls_verify", false)

	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")

	v.SetDefault("master.proxy", "")

	v.SetDefault("agent.token", "")
	v.SetDefault("agent.name", "")
	v.SetDefault("agent.poll_interval", "10s")
	v.SetDefault("agent.flush_interval", "15s")
	v.SetDefault("agent.buffer_size", 10000)

	v.SetDefault("mailqueue.backend", "memory")
	v.SetDefault("mailqueue.max_age", "5m")
	v.SetDefault("mailqueue.sweep_interval", "30s")
	v.SetDefault("mailqueue.batch_size", 100)

	v.SetDefault("scheduler.tick", "1s")
	v.SetDefault("scheduler.collect_timeout", "10s")
	v.SetDefault("scheduler.workers", 4)

	v.SetDefault("security.sealing_secret", "")
	v.SetDefault("security.sealing_salt", "neofleet")
	v.SetDefault("security.agent_tokens", []string{})
	v.SetDefault("security.operator_token", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "neofleet:mailqueue:")
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("middleware.logging.enabled", true)
	v.SetDefault("middleware.logging.slow_request_threshold", "1s")
	v.SetDefault("middleware.logging.skip_paths", []string{"/health", "/ping"})
	v.SetDefault("middleware.rate_limit.enabled", true)
	v.SetDefault("middleware.rate_limit.requests_per_second", 20)
	v.SetDefault("middleware.rate_limit.burst_size", 40)
	v.SetDefault("middleware.rate_limit.skip_paths", []string{"/health", "/ping", "/version"})
}

// Validate 校验配置，出错立即返回
func Validate(cfg *Config) error {
	if cfg.Server == nil || cfg.Log == nil || cfg.Master == nil || cfg.Agent == nil ||
		cfg.MailQueue == nil || cfg.Scheduler == nil || cfg.Security == nil || cfg.Redis == nil {
		return fmt.Errorf("incomplete config")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Master.Port <= 0 || cfg.Master.Port > 65535 {
		return fmt.Errorf("invalid master port: %d", cfg.Master.Port)
	}
	if strings.Contains(cfg.Agent.Token, "#") {
		return fmt.Errorf("agent token must not contain '#'")
	}
	if cfg.Agent.PollInterval <= 0 || cfg.Agent.FlushInterval <= 0 {
		return fmt.Errorf("agent poll/flush interval must be positive")
	}
	if cfg.MailQueue.MaxAge <= 0 {
		return fmt.Errorf("mailqueue max_age must be positive")
	}
	if cfg.MailQueue.SweepInterval <= 0 {
		return fmt.Errorf("mailqueue sweep_interval must be positive")
	}
	switch cfg.MailQueue.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported mailqueue backend: %s", cfg.MailQueue.Backend)
	}
	if cfg.Scheduler.Tick <= 0 {
		return fmt.Errorf("scheduler tick must be positive")
	}
	if cfg.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler workers must be positive")
	}
	if rl := cfg.Middleware; rl != nil && rl.RateLimit != nil && rl.RateLimit.Enabled {
		if rl.RateLimit.RequestsPerSecond <= 0 || rl.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("rate limit requests_per_second and burst_size must be positive")
		}
	}
	return nil
}
