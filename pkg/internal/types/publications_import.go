package types

// ImportFolderRequest 从服务器本地目录批量导入.
type ImportFolderRequest struct {
	Path string `json:"path" rule:"required"`
}

// ItemError 批处理中单个条目的失败原因.
type ItemError struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// ImportResult 批量导入结果. 单条失败不会中断批处理.
type ImportResult struct {
	Imported int         `json:"imported"`
	Skipped  int         `json:"skipped"`
	Errors   []ItemError `json:"errors"`
}

// AddError 记录一条失败.
func (r *ImportResult) AddError(item string, err error) {
	r.Errors = append(r.Errors, ItemError{Item: item, Reason: err.Error()})
}

// Merge 合并另一个结果（并行导入时使用，调用方负责加锁）.
func (r *ImportResult) Merge(o *ImportResult) {
	r.Imported += o.Imported
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// EnrichResult 期刊字段补全结果.
type EnrichResult struct {
	Scanned int         `json:"scanned"`
	Updated int         `json:"updated"`
	Errors  []ItemError `json:"errors"`
}

// AddError 记录一条失败.
func (r *EnrichResult) AddError(item string, err error) {
	r.Errors = append(r.Errors, ItemError{Item: item, Reason: err.Error()})
}
