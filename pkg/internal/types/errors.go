package types

import "errors"

// 错误分类. 调用方用 errors.Is 判断，具体原因通过 %w 包装携带.
var (
	// ErrValidation 必填字段缺失或格式错误，未持久化任何内容.
	ErrValidation = errors.New("validation error")
	// ErrAttachment 附件存储/删除失败，调用方不能假设路径有效.
	ErrAttachment = errors.New("attachment error")
	// ErrStore 数据库操作失败.
	ErrStore = errors.New("store error")
	// ErrIO CSV 读写失败.
	ErrIO = errors.New("io error")
	// ErrNotFound 记录不存在.
	ErrNotFound = errors.New("publication not found")
)
