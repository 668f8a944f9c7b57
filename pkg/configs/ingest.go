package configs

import "github.com/spf13/viper"

// IngestConfig 目录导入配置.
type IngestConfig struct {
	// Workers 并行处理的年份目录数
	Workers int `mapstructure:"workers" rule:"min=1,max=64"`
}

func (c *IngestConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("ingest.workers", 1)
}
