package configs

import "github.com/spf13/viper"

// AttachmentBackend 附件存储后端.
type AttachmentBackend string

const (
	BackendLocal AttachmentBackend = "local"
	BackendS3    AttachmentBackend = "s3"

	DefaultAttachmentsRoot       = "uploads"  // 本地存储根目录
	DefaultAttachmentsPublicBase = "/uploads" // 公开路径前缀
)

// AttachmentsConfig PDF/BibTeX 附件存储配置.
type AttachmentsConfig struct {
	Backend AttachmentBackend `mapstructure:"backend"     rule:"oneof=local s3"`
	// Root 本地后端的存储根目录
	Root string `mapstructure:"root"        rule:"required"`
	// PublicBase 写入 pdf_path/bib_path 的公开路径前缀，本地后端时也是静态文件路由
	PublicBase string `mapstructure:"public_base" rule:"required,startswith=/"`
}

func (c *AttachmentsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("attachments.backend", BackendLocal)
	v.SetDefault("attachments.root", DefaultAttachmentsRoot)
	v.SetDefault("attachments.public_base", DefaultAttachmentsPublicBase)
}
