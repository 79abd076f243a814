package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvLoader .env 文件加载器，已存在的环境变量不会被覆盖
type EnvLoader struct {
	envFiles []string
}

// NewEnvLoader 创建环境变量加载器
func NewEnvLoader(envFiles ...string) *EnvLoader {
	return &EnvLoader{envFiles: envFiles}
}

// Load 加载全部 .env 文件，文件不存在时跳过
func (e *EnvLoader) Load() error {
	for _, f := range e.envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// GetString 读取字符串
func (e *EnvLoader) GetString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

// GetInt 读取整数，解析失败返回默认值
func (e *EnvLoader) GetInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// GetBool 读取布尔值
func (e *EnvLoader) GetBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// GetDuration 读取时间间隔
func (e *EnvLoader) GetDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
