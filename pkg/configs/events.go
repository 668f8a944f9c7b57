package configs

import "github.com/spf13/viper"

// EventsConfig 控制领域事件的发布与订阅.
type EventsConfig struct {
	Enabled bool `mapstructure:"enabled"` // 总开关
	// EnrichOnImport 目录导入完成后自动补全期刊
	EnrichOnImport bool `mapstructure:"enrich_on_import"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.enrich_on_import", true)
}
