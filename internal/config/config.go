/**
 * 配置定义
 * @author: sun977
 * @date: 2025.10.21
 * @description: Master 与 Agent 共用的配置结构
 * @func: 由 ConfigLoader 从 yaml + 环境变量 + 默认值装配
 */
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	App        *AppConfig        `yaml:"app" mapstructure:"app"`
	Server     *ServerConfig     `yaml:"server" mapstructure:"server"` // Master 监听
	Log        *LogConfig        `yaml:"log" mapstructure:"log"`
	Master     *MasterConfig     `yaml:"master" mapstructure:"master"` // Agent 连接 Master
	Agent      *AgentConfig      `yaml:"agent" mapstructure:"agent"`
	MailQueue  *MailQueueConfig  `yaml:"mailqueue" mapstructure:"mailqueue"`
	Scheduler  *SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Security   *SecurityConfig   `yaml:"security" mapstructure:"security"`
	Redis      *RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Middleware *MiddlewareConfig `yaml:"middleware" mapstructure:"middleware"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"` // development/production/test
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ServerConfig Master HTTP 服务配置
type ServerConfig struct {
	Host           string        `yaml:"host" mapstructure:"host"`
	Port           int           `yaml:"port" mapstructure:"port"`
	Mode           string        `yaml:"mode" mapstructure:"mode"` // gin 模式 debug/release/test
	Prefix         string        `yaml:"prefix" mapstructure:"prefix"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" mapstructure:"max_header_bytes"`
	TLS            TLSConfig     `yaml:"tls" mapstructure:"tls"`
}

// TLSConfig TLS配置
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`         // debug/info/warn/error
	Format     string `yaml:"format" mapstructure:"format"`       // json/text
	Output     string `yaml:"output" mapstructure:"output"`       // stdout/stderr/file
	FilePath   string `yaml:"file_path" mapstructure:"file_path"` // output=file 时必填
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`   // MB
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"` // 天
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
	Caller     bool   `yaml:"caller" mapstructure:"caller"`
}

// MasterConfig Agent 端连接 Master 的配置
type MasterConfig struct {
	Address        string        `yaml:"address" mapstructure:"address"`
	Port           int           `yaml:"port" mapstructure:"port"`
	Protocol       string        `yaml:"protocol" mapstructure:"protocol"` // http/https
	Prefix         string        `yaml:"prefix" mapstructure:"prefix"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	RetryCount     int           `yaml:"retry_count" mapstructure:"retry_count"`
	RetryDelay     time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	SkipTLSVerify  bool          `yaml:"skip_tls_verify" mapstructure:"skip_tls_verify"`
	Proxy          string        `yaml:"proxy" mapstructure:"proxy"` // socks5://host:port，防火墙内 Agent 使用
}

// BaseURL 拼接 Master 地址
func (m *MasterConfig) BaseURL() string {
	protocol := m.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s:%d%s", protocol, m.Address, m.Port, strings.TrimRight(m.Prefix, "/"))
}

// AgentConfig Agent 运行配置
type AgentConfig struct {
	Token         string        `yaml:"token" mapstructure:"token"` // Agent 身份令牌，不能包含 '#'
	Name          string        `yaml:"name" mapstructure:"name"`
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`   // 拉取命令间隔
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"` // 上报采集值间隔
	BufferSize    int           `yaml:"buffer_size" mapstructure:"buffer_size"`       // 采集值缓冲上限
}

// MailQueueConfig Master 端邮件队列配置
type MailQueueConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"`               // memory/redis
	MaxAge        time.Duration `yaml:"max_age" mapstructure:"max_age"`               // 待应答请求老化阈值
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"` // 老化扫描间隔
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size"`         // 单次拉取最多返回的信封数
}

// SchedulerConfig Agent 端采集调度配置
type SchedulerConfig struct {
	Tick           time.Duration `yaml:"tick" mapstructure:"tick"`                       // 调度检查间隔
	CollectTimeout time.Duration `yaml:"collect_timeout" mapstructure:"collect_timeout"` // 单次采集超时
	Workers        int           `yaml:"workers" mapstructure:"workers"`                 // 并发采集数
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	SealingSecret string   `yaml:"sealing_secret" mapstructure:"sealing_secret"` // 加密配置共享口令
	SealingSalt   string   `yaml:"sealing_salt" mapstructure:"sealing_salt"`
	AgentTokens   []string `yaml:"agent_tokens" mapstructure:"agent_tokens"` // Master 接受的 Agent 令牌，为空表示不校验
	OperatorToken string   `yaml:"operator_token" mapstructure:"operator_token"`
}

// RedisConfig RedisMailbox 使用
type RedisConfig struct {
	Addr        string        `yaml:"addr" mapstructure:"addr"`
	Password    string        `yaml:"password" mapstructure:"password"`
	DB          int           `yaml:"db" mapstructure:"db"`
	KeyPrefix   string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Logging   *LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	RateLimit *RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LoggingConfig 访问日志中间件配置
type LoggingConfig struct {
	Enabled              bool          `yaml:"enabled" mapstructure:"enabled"`
	SlowRequestThreshold time.Duration `yaml:"slow_request_threshold" mapstructure:"slow_request_threshold"`
	SkipPaths            []string      `yaml:"skip_paths" mapstructure:"skip_paths"`
}

// RateLimitConfig Agent 接口限流，按 Agent 令牌 (缺省按客户端IP) 分桶
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int      `yaml:"burst_size" mapstructure:"burst_size"`
	SkipPaths         []string `yaml:"skip_paths" mapstructure:"skip_paths"`
}

const masked = "******"

// Dump 输出 yaml，敏感字段打码
func (c *Config) Dump() ([]byte, error) {
	cp := *c
	if c.Security != nil {
		sec := *c.Security
		if sec.SealingSecret != "" {
			sec.SealingSecret = masked
		}
		if sec.OperatorToken != "" {
			sec.OperatorToken = masked
		}
		if len(sec.AgentTokens) > 0 {
			sec.AgentTokens = []string{fmt.Sprintf("%d tokens", len(sec.AgentTokens))}
		}
		cp.Security = &sec
	}
	if c.Redis != nil && c.Redis.Password != "" {
		r := *c.Redis
		r.Password = masked
		cp.Redis = &r
	}
	if c.Agent != nil && c.Agent.Token != "" {
		a := *c.Agent
		a.Token = masked
		cp.Agent = &a
	}
	out, err := yaml.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

var (
	globalConfig *Config
	globalMu     sync.RWMutex
)

// LoadConfig 加载并设置全局配置
func LoadConfig(configPath ...string) (*Config, error) {
	var path string
	if len(configPath) > 0 {
		path = configPath[0]
	}
	cfg, err := NewConfigLoader(path, EnvPrefix).LoadConfig()
	if err != nil {
		return nil, err
	}
	SetConfig(cfg)
	return cfg, nil
}

// GetConfig 全局配置
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetConfig 替换全局配置 (热重载)
func SetConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}
