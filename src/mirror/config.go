package mirror

import "github.com/xpwu/go-config/configs"

// Config Redis镜像配置
type Config struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Prefix     string `json:"prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// ConfigValue 全局Redis镜像配置
var ConfigValue = Config{
	Enabled:    false,
	Host:       "localhost",
	Port:       6379,
	DB:         0,
	Prefix:     "multicryptobot:",
	TTLSeconds: 3900,
}

func init() {
	configs.Unmarshal(&ConfigValue)
}
