// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：pv.<域>.<动作>，尽量稳定且向后兼容.

const (
	// 出版物记录.
	TopicPublicationCreated = "pv.publication.created" // 新建记录（文件与记录都已持久化）
	TopicPublicationUpdated = "pv.publication.updated" // 编辑记录（可能替换了附件）
	TopicPublicationDeleted = "pv.publication.deleted" // 删除记录及其附件
	TopicCatalogCleared     = "pv.catalog.cleared"     // 清空表
	TopicCatalogReset       = "pv.catalog.reset"       // 重建表结构

	// 批处理.
	TopicImportCompleted    = "pv.import.completed"     // 目录导入完成
	TopicCSVImported        = "pv.csv.imported"         // CSV 导入完成
	TopicEnrichmentFinished = "pv.enrichment.completed" // 期刊补全完成
)

// MutationTopics 所有会改变记录集合的主题，订阅后用于缓存失效.
var MutationTopics = []string{
	TopicPublicationCreated,
	TopicPublicationUpdated,
	TopicPublicationDeleted,
	TopicCatalogCleared,
	TopicCatalogReset,
	TopicImportCompleted,
	TopicCSVImported,
	TopicEnrichmentFinished,
}
