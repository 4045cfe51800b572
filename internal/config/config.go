package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList           []string `mapstructure:"rpc_list"`
	RPCRateLimit      int      `mapstructure:"rpc_rate_limit"`
	JupiterQuoteURL   string   `mapstructure:"jupiter_quote_url"`
	JupiterTokensURL  string   `mapstructure:"jupiter_tokens_url"`
	PumpFunAPIURL     string   `mapstructure:"pump_fun_api_url"`
	PlatformFeePubkey string   `mapstructure:"platform_fee_pubkey"`
	PlatformFeeBps    int      `mapstructure:"platform_fee_bps"`
	PriorityFeeSol    float64  `mapstructure:"priority_fee_sol"`
	ReferralDiscount  float64  `mapstructure:"referral_discount"`
	SolUSDRateURL     string   `mapstructure:"sol_usd_rate_url"`
	// WalletKey is read from the environment only, never from the file.
	WalletKey         string   `mapstructure:"wallet_key"`
	RedisAddr         string   `mapstructure:"redis_addr"`
	RedisPassword     string   `mapstructure:"redis_password"`
	RedisDB           int      `mapstructure:"redis_db"`
	MetricsAddr       string   `mapstructure:"metrics_addr"`
	DebugLogging      bool     `mapstructure:"debug_logging"`
	LogFile           string   `mapstructure:"log_file"`
}

const (
	DefaultRPCRateLimit   = 10
	DefaultPlatformFeeBps = 50
	DefaultPriorityFeeSol = 0.00007

	DefaultJupiterQuoteURL  = "https://quote-api.jup.ag/v6"
	DefaultJupiterTokensURL = "https://token.jup.ag/all"
	DefaultPumpFunAPIURL    = "https://frontend-api.pump.fun"
	DefaultSolUSDRateURL    = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("trade_engine")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := map[string]interface{}{
		"rpc_rate_limit":     DefaultRPCRateLimit,
		"platform_fee_bps":   DefaultPlatformFeeBps,
		"priority_fee_sol":   DefaultPriorityFeeSol,
		"jupiter_quote_url":  DefaultJupiterQuoteURL,
		"jupiter_tokens_url": DefaultJupiterTokensURL,
		"pump_fun_api_url":   DefaultPumpFunAPIURL,
		"sol_usd_rate_url":   DefaultSolUSDRateURL,
		"referral_discount":  1.0,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.PlatformFeePubkey == "" {
		return errors.New("missing platform_fee_pubkey in configuration")
	}
	if cfg.RPCRateLimit <= 0 {
		return errors.New("invalid rpc_rate_limit")
	}
	if cfg.PlatformFeeBps < 0 || cfg.PlatformFeeBps > 10000 {
		return errors.New("platform_fee_bps outside [0, 10000]")
	}
	if cfg.PriorityFeeSol < 0 {
		return errors.New("priority_fee_sol cannot be negative")
	}
	return nil
}

func validateURL(raw, scheme string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(u.Scheme, scheme) {
		return errors.New("unexpected scheme: " + u.Scheme)
	}
	return nil
}
