package binance

import (
	"fmt"
	"net/url"

	"multicryptobot/src/cex"
)

type factory struct {
	config func() Config
}

// CreateClient 行情接口不需要密钥；密钥只配一半或 base_url 非法时拒绝创建
func (f *factory) CreateClient() (cex.CEXClient, error) {
	c := f.config()
	if (c.APIKey == "") != (c.SecretKey == "") {
		return nil, fmt.Errorf("binance api_key and secret_key must be set together")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid binance base_url %q", c.BaseURL)
		}
	}
	return NewClient(c.APIKey, c.SecretKey, c.BaseURL, c.Timeout), nil
}

func init() {
	cex.RegisterCEXFactory("binance", &factory{config: func() Config { return ConfigValue }})
}
