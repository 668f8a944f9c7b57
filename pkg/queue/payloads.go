package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// PublicationRef 标识一条出版物记录及其附件.
type PublicationRef struct {
	ID      uint   `json:"id"`
	Title   string `json:"titulo"`
	Year    int    `json:"anio"`
	PDFPath string `json:"pdf_path,omitempty"`
	BibPath string `json:"bib_path,omitempty"`
}

// PublicationChangedPayload 新建/编辑/删除.
type PublicationChangedPayload struct {
	Publication PublicationRef `json:"publication"`
	// ReplacedFiles 编辑时被替换掉的旧附件公开路径.
	ReplacedFiles []string `json:"replaced_files,omitempty"`
}

// CatalogPayload 清空或重建.
type CatalogPayload struct {
	Action string `json:"action"`
}

// BatchPayload 批处理完成.
type BatchPayload struct {
	Source   string `json:"source"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped,omitempty"`
	Errors   int    `json:"errors"`
}
