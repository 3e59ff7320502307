package config

import (
	"os"
	"sync"
)

var (
	genaiOnce   sync.Once
	genaiConfig *GenAIConfig
)

// GenAIConfig 外部文档理解服务的连接配置
type GenAIConfig struct {
	APIKey   string
	Model    string
	Endpoint string
}

func GetGenAIConfig() *GenAIConfig {
	genaiOnce.Do(func() {
		loadEnv()

		genaiConfig = &GenAIConfig{
			APIKey:   os.Getenv("GEMINI_API_KEY"),
			Model:    getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			Endpoint: getenv("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
		}
	})
	return genaiConfig
}
