package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher 监听配置文件变化并重新加载
// 回调全部成功后才替换当前配置
type ConfigWatcher struct {
	configFile  string
	config      *Config
	watcher     *fsnotify.Watcher
	callbacks   []ConfigChangeCallback
	onError     func(error)
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	reloadDelay time.Duration
	timer       *time.Timer
}

// ConfigChangeCallback 配置变更回调
type ConfigChangeCallback func(oldConfig, newConfig *Config) error

// NewConfigWatcher 监听指定的配置文件，initial 为当前生效配置
func NewConfigWatcher(configFile string, initial *Config) (*ConfigWatcher, error) {
	if configFile == "" {
		return nil, fmt.Errorf("config file path is empty")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConfigWatcher{
		configFile:  configFile,
		config:      initial,
		watcher:     w,
		onError:     func(error) {},
		ctx:         ctx,
		cancel:      cancel,
		reloadDelay: 500 * time.Millisecond,
	}, nil
}

// OnError 设置重载失败时的处理函数
func (cw *ConfigWatcher) OnError(fn func(error)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.onError = fn
}

// Start 开始监听；监听目录以兼容编辑器的原子替换写法
func (cw *ConfigWatcher) Start() error {
	if err := cw.watcher.Add(filepath.Dir(cw.configFile)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	go cw.watchLoop()
	return nil
}

// Stop 停止监听
func (cw *ConfigWatcher) Stop() error {
	cw.cancel()
	return cw.watcher.Close()
}

// GetConfig 当前配置
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// AddCallback 添加配置变更回调
func (cw *ConfigWatcher) AddCallback(callback ConfigChangeCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case <-cw.ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleFileEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.reportError(fmt.Errorf("config watcher: %w", err))
		}
	}
}

// handleFileEvent 防抖：连续写入只触发一次重载
func (cw *ConfigWatcher) handleFileEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(cw.configFile) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.reloadDelay, func() {
		if err := cw.Reload(); err != nil {
			cw.reportError(err)
		}
	})
}

// Reload 重新加载配置文件并执行回调
func (cw *ConfigWatcher) Reload() error {
	newConfig, err := NewConfigLoader(cw.configFile, EnvPrefix).LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	cw.mu.RLock()
	oldConfig := cw.config
	callbacks := append([]ConfigChangeCallback(nil), cw.callbacks...)
	cw.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(oldConfig, newConfig); err != nil {
			return fmt.Errorf("config change callback failed: %w", err)
		}
	}

	cw.mu.Lock()
	cw.config = newConfig
	cw.mu.Unlock()
	SetConfig(newConfig)
	return nil
}

func (cw *ConfigWatcher) reportError(err error) {
	cw.mu.RLock()
	fn := cw.onError
	cw.mu.RUnlock()
	fn(err)
}

// ValidateConfigChange 运行期不允许修改的字段
func ValidateConfigChange(oldConfig, newConfig *Config) error {
	if oldConfig == nil {
		return nil
	}
	if oldConfig.Agent.Token != newConfig.Agent.Token {
		return fmt.Errorf("agent token cannot be changed during runtime")
	}
	if oldConfig.MailQueue.Backend != newConfig.MailQueue.Backend {
		return fmt.Errorf("mailqueue backend cannot be changed during runtime")
	}
	if oldConfig.Security.SealingSecret != newConfig.Security.SealingSecret {
		return fmt.Errorf("sealing secret cannot be changed during runtime")
	}
	return nil
}
