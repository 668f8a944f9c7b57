package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobEnrichJournals = "publications.enrich_journals"
)

// 订阅处理器名称.
const (
	HandlerEnrichOnImport  = "enrich.on_import"
	HandlerCacheInvalidate = "cache.invalidate"
)
