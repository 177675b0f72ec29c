package windgo

import (
	"sync"

	"go.uber.org/zap"
)

// SourceTag 写入缓存时使用的数据源标签
const SourceTag = "wind"

// Provider Wind 数据提供器
//
// 持有唯一一个按需建立的终端会话，对外暴露证券列表、日线行情、
// 公司信息、财务报表等操作，所有结果统一整形为与下游管线一致的
// 表格形态。失败从不向调用方抛出：连接不可用、远程调用出错、
// 整形失败都退化为对应操作声明的空结果，细节记入日志。
type Provider struct {
	config Config
	logger *zap.Logger

	terminal Terminal
	cache    Cache

	connected bool
	mu        sync.Mutex
}

// NewProvider 创建 Wind 数据提供器
//
// 终端连接延迟到第一次远程调用时建立。缓存初始化失败只降级为
// 不缓存，不阻止创建。
func NewProvider(config Config) *Provider {
	logger, err := NewLogger(config.LogConfig)
	if err != nil {
		logger = NewDefaultLogger()
	}

	var auth *GatewayAuth
	if config.Username != "" {
		auth = NewGatewayAuth(config.Username, config.Password, config.AuthURL)
	}

	gwConfig := DefaultGatewayConfig()
	gwConfig.Logger = logger
	if config.CallTimeout > 0 {
		gwConfig.CallTimeout = config.CallTimeout
	}

	p := &Provider{
		config:   config,
		logger:   logger,
		terminal: NewGatewayTerminal(config.GatewayURL, auth, gwConfig),
	}

	if config.EnableCache {
		cache, err := NewSQLiteCache(config.CachePath)
		if err != nil {
			logger.Warn("cache unavailable, falling back to remote-only",
				zap.String("path", config.CachePath),
				zap.Error(err))
		} else {
			p.cache = cache
		}
	}

	return p
}

// NewProviderWith 用指定的终端与缓存创建提供器，测试和定制场景使用
func NewProviderWith(terminal Terminal, cache Cache, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &Provider{
		config:   DefaultConfig(),
		logger:   logger,
		terminal: terminal,
		cache:    cache,
	}
}

// Connected 当前是否持有存活会话
func (p *Provider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && p.terminal.IsConnected()
}

// ensureConnected 确保终端会话有效，必要时重建一次
//
// 返回 false 时调用方必须按"数据不可用"处理，返回空结果。
func (p *Provider) ensureConnected() bool {
	if p.connected {
		// 校验现有会话是否仍然存活
		if p.terminal.IsConnected() {
			return true
		}
		p.logger.Warn("terminal session lost, reconnecting")
		p.connected = false
	}

	if err := p.terminal.Start(); err != nil {
		p.logger.Error("terminal connect failed", zap.Error(err))
		return false
	}
	if !p.terminal.IsConnected() {
		p.logger.Error("terminal connect did not yield a live session")
		return false
	}

	p.connected = true
	return true
}

// Close 释放提供器
//
// 关闭终端会话和缓存；任何失败只记日志，绝不向上抛出。
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected || p.terminal.IsConnected() {
		if err := p.terminal.Stop(); err != nil {
			p.logger.Warn("terminal disconnect failed", zap.Error(err))
		}
		p.connected = false
	}

	if closer, ok := p.cache.(*SQLiteCache); ok && closer != nil {
		if err := closer.Close(); err != nil {
			p.logger.Warn("cache close failed", zap.Error(err))
		}
	}
}

// cacheFind 在新鲜度窗口内查缓存，失败只记日志
func (p *Provider) cacheFind(key string, maxAgeHours int) *Table {
	if p.cache == nil {
		return nil
	}

	handle, ok := p.cache.Find(key, hoursToDuration(maxAgeHours))
	if !ok {
		return nil
	}

	t, err := p.cache.Load(handle)
	if err != nil {
		p.logger.Warn("cache load failed",
			zap.String("key", key),
			zap.String("handle", handle),
			zap.Error(err))
		return nil
	}
	if t.Empty() {
		return nil
	}

	p.logger.Info("cache hit",
		zap.String("key", key),
		zap.Int("rows", t.Len()))
	return t
}

// cacheSave 保存缓存，失败只记日志，不影响已取回的数据返回
func (p *Provider) cacheSave(key string, t *Table) {
	if p.cache == nil || t.Empty() {
		return
	}

	handle, err := p.cache.Save(key, t, SourceTag)
	if err != nil {
		p.logger.Error("cache save failed",
			zap.String("key", key),
			zap.Error(err))
		return
	}
	p.logger.Info("cached",
		zap.String("key", key),
		zap.String("handle", handle),
		zap.Int("rows", t.Len()))
}

// 全局提供器实例
var (
	defaultProvider *Provider
	defaultMu       sync.Mutex
)

// Default 获取进程级共享的提供器实例，首次访问时创建
func Default() *Provider {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultProvider == nil {
		defaultProvider = NewProvider(DefaultConfig())
	}
	return defaultProvider
}

// ResetDefault 释放共享实例，主要供测试使用
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultProvider != nil {
		defaultProvider.Close()
		defaultProvider = nil
	}
}

// GetChinaStockData 获取 A 股日线数据的便捷函数
func GetChinaStockData(symbol, startDate, endDate string) *Table {
	return Default().StockDaily(symbol, startDate, endDate)
}

// GetChinaStockInfo 获取 A 股基本信息的便捷函数
func GetChinaStockInfo(symbol string) map[string]string {
	return Default().StockInfo(symbol)
}
