package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config 全部来自环境变量，.env 文件存在时先加载
type Config struct {
	GitHubToken string `env:"GITHUB_TOKEN"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiAPIKey1 string `env:"GEMINI_API_KEY_1"`
	GeminiAPIKey2 string `env:"GEMINI_API_KEY_2"`
	GeminiAPIKey3 string `env:"GEMINI_API_KEY_3"`
	GeminiAPIKey4 string `env:"GEMINI_API_KEY_4"`
	GeminiAPIKey5 string `env:"GEMINI_API_KEY_5"`

	FirebaseDatabaseURL string `env:"FIREBASE_DATABASE_URL"`
	FirebaseAuthToken   string `env:"FIREBASE_AUTH_TOKEN"`
	PostgresDSN         string `env:"POSTGRES_DSN" envDefault:"host=localhost user=postgres password=123456 dbname=prospector port=5432 sslmode=disable"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogFile  string `env:"LOG_FILE"`

	// 管理接口默认放行 (沿用来源系统的开发模式行为)，生产可关闭并配 token
	AdminOpenAccess bool   `env:"ADMIN_OPEN_ACCESS" envDefault:"true"`
	AdminToken      string `env:"ADMIN_TOKEN"`

	// 仅在 production 下自动启动描述更新任务
	Environment           string `env:"APP_ENV" envDefault:"development"`
	AutoDescriptionUpdate bool   `env:"AUTO_DESCRIPTION_UPDATER" envDefault:"false"`
}

// Load 读取 .env (可选) 并解析环境变量
func Load() (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	return cfg, nil
}

// GeminiKeys 收集全部非空的 Gemini API 密钥 (最多 6 个)
func (c *Config) GeminiKeys() []string {
	raw := []string{
		c.GeminiAPIKey,
		c.GeminiAPIKey1, c.GeminiAPIKey2, c.GeminiAPIKey3,
		c.GeminiAPIKey4, c.GeminiAPIKey5,
	}
	var keys []string
	for _, k := range raw {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
