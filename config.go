package windgo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config Wind 适配器配置
type Config struct {
	// 网关地址
	GatewayURL string `yaml:"gateway_url"` // 终端网关行情连接地址
	AuthURL    string `yaml:"auth_url"`    // 终端网关认证服务地址

	// 认证信息
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// 缓存配置
	EnableCache bool   `yaml:"enable_cache"`
	CachePath   string `yaml:"cache_path"` // SQLite 缓存文件路径

	// 单次远程调用超时
	CallTimeout time.Duration `yaml:"call_timeout"`

	// 日志配置
	LogConfig LogConfig `yaml:"log"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		GatewayURL:  "ws://127.0.0.1:17779/api",
		AuthURL:     "http://127.0.0.1:17780",
		EnableCache: true,
		CachePath:   "windgo_cache.db",
		CallTimeout: 30 * time.Second,
		LogConfig: LogConfig{
			Level:       "info",
			OutputPath:  "stdout",
			Development: false,
		},
	}
}

// LoadConfig 从 YAML 文件加载配置，环境变量优先于文件内容
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WIND_GATEWAY_URL"); v != "" {
		cfg.GatewayURL = v
	}
	if v := os.Getenv("WIND_AUTH_URL"); v != "" {
		cfg.AuthURL = v
	}
	if v := os.Getenv("WIND_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("WIND_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("WIND_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("WIND_LOG_LEVEL"); v != "" {
		cfg.LogConfig.Level = v
	}
}
