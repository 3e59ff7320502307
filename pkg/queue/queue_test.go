package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigWithDefaults_Nil(t *testing.T) {
	cfg := (*Config)(nil).withDefaults()

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.ProcessTimeout)
	assert.Equal(t, 24*time.Hour, cfg.ResultTTL)
}

func TestConfigWithDefaults_FillsZeroFields(t *testing.T) {
	in := &Config{RedisAddr: "redis:6379", MaxRetries: 7}
	cfg := in.withDefaults()

	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.ProcessTimeout)
	assert.Equal(t, 24*time.Hour, cfg.ResultTTL)
	// 调用方的配置不被改写
	assert.Zero(t, in.ProcessTimeout)
}

func TestConfigWithDefaults_KeepsExplicitValues(t *testing.T) {
	in := &Config{
		RedisAddr:      "redis:6379",
		MaxRetries:     1,
		ProcessTimeout: 5 * time.Minute,
		ResultTTL:      time.Hour,
	}
	cfg := in.withDefaults()

	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.ProcessTimeout)
	assert.Equal(t, time.Hour, cfg.ResultTTL)
}
