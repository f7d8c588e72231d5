package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/eringen/pubdash"
	"github.com/eringen/pubdash/dashboard"
)

// loadConfig builds the server configuration from flags, PUBDASH_*
// environment variables and the config file, in that order of precedence.
func loadConfig() (pubdash.Config, error) {
	cfg := pubdash.Config{
		Name:          viper.GetString("name"),
		Addr:          viper.GetString("addr"),
		AdminPassword: viper.GetString("admin_password"),
		SessionSecret: viper.GetString("session_secret"),
		CookieSecure:  viper.GetBool("cookie_secure"),
		Provider:      viper.GetString("provider"),
		DatabasePath:  viper.GetString("database_path"),
		RetentionDays: viper.GetInt("retention_days"),
		APIBaseURL:    viper.GetString("api_base_url"),
		CacheTTL:      viper.GetDuration("cache_ttl"),
		RedisURL:      viper.GetString("redis_url"),
		PageSize:      viper.GetInt("page_size"),
		MaxResults:    viper.GetInt("max_results"),
		ChartScript:   viper.GetString("chart_script"),
	}
	if path := viper.GetString("sites_file"); path != "" {
		sites, err := dashboard.LoadSites(path)
		if err != nil {
			return cfg, err
		}
		cfg.Sites = sites
	}
	if cfg.Provider == pubdash.ProviderRemote && len(cfg.Sites) == 0 {
		return cfg, fmt.Errorf("the remote provider needs a sites file")
	}
	return cfg, nil
}
