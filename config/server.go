package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server 进程级配置
type Server struct {
	Addr           string
	TCPAddr        string // 为空则不启用 yamux TCP 接入
	LogFile        string
	LogLevel       string
	DBPath         string // 为空则不落盘
	StaticDir      string
	PingInterval   time.Duration
	InputRateLimit int // 每连接每秒最多接受的 input 数
	SendBuffer     int
	Tokens         []TokenEntry
	Tuning         Tuning
}

// TokenEntry 静态身份表的一项：token -> 用户
type TokenEntry struct {
	Token       string
	UserID      string
	DisplayName string
}

// DefaultServer 默认配置
func DefaultServer() Server {
	return Server{
		Addr:           ":8080",
		LogFile:        "app.log",
		LogLevel:       "info",
		DBPath:         "skirace.db",
		StaticDir:      "web",
		PingInterval:   15 * time.Second,
		InputRateLimit: 120,
		SendBuffer:     64,
		Tuning:         DefaultTuning(),
	}
}

// Load 先读取可选的 .env，再用 SKI_* 环境变量覆盖默认值
func Load(files ...string) (Server, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("load env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv 从给定的查找函数解析配置，便于测试
func FromEnv(getenv func(string) string) (Server, error) {
	cfg := DefaultServer()
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("SKI_ADDR", &cfg.Addr)
	str("SKI_TCP_ADDR", &cfg.TCPAddr)
	str("SKI_LOG_FILE", &cfg.LogFile)
	str("SKI_LOG_LEVEL", &cfg.LogLevel)
	str("SKI_DB_PATH", &cfg.DBPath)
	str("SKI_STATIC_DIR", &cfg.StaticDir)

	ints := []struct {
		key string
		dst *int
	}{
		{"SKI_INPUT_RATE_LIMIT", &cfg.InputRateLimit},
		{"SKI_SEND_BUFFER", &cfg.SendBuffer},
		{"SKI_TICK_RATE", &cfg.Tuning.TickRate},
		{"SKI_BROADCAST_RATE", &cfg.Tuning.BroadcastRate},
		{"SKI_MAX_PLAYERS", &cfg.Tuning.MaxPlayers},
		{"SKI_INPUT_BUFFER", &cfg.Tuning.InputBufferSize},
	}
	for _, it := range ints {
		v := getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Server{}, fmt.Errorf("%s: invalid positive integer %q", it.key, v)
		}
		*it.dst = n
	}

	if v := getenv("SKI_PING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Server{}, fmt.Errorf("SKI_PING_INTERVAL: invalid duration %q", v)
		}
		cfg.PingInterval = d
	}
	if v := getenv("SKI_TRUST_CLIENT_DT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Server{}, fmt.Errorf("SKI_TRUST_CLIENT_DT: %w", err)
		}
		cfg.Tuning.TrustClientDt = b
	}
	if v := getenv("SKI_TOKENS"); v != "" {
		tokens, err := ParseTokens(v)
		if err != nil {
			return Server{}, err
		}
		cfg.Tokens = tokens
	}
	return cfg, nil
}

// ParseTokens 解析 "token:user:显示名,token2:user2:名2"
func ParseTokens(s string) ([]TokenEntry, error) {
	var out []TokenEntry
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("SKI_TOKENS: malformed entry %q", item)
		}
		out = append(out, TokenEntry{Token: parts[0], UserID: parts[1], DisplayName: parts[2]})
	}
	return out, nil
}
