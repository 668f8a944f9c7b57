package configs

import "github.com/spf13/viper"

// SchedulerConfig 定时任务配置.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// EnrichCron 期刊补全任务的 cron 表达式
	EnrichCron string `mapstructure:"enrich_cron" rule:"required"`
	// EnrichBatch 每次补全最多处理的记录数，0 表示不限
	EnrichBatch int `mapstructure:"enrich_batch" rule:"min=0"`
}

func (c *SchedulerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.enrich_cron", "30 3 * * *")
	v.SetDefault("scheduler.enrich_batch", 500)
}
