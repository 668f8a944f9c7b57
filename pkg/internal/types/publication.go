package types

import (
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTitleLength titulo 列宽（字符数）.
	MaxTitleLength = 255
	// TitleEllipsis 截断标记.
	TitleEllipsis = "…"
)

// PublicationType 出版物类型，只接受 PublicationTypes 中的取值.
type PublicationType string

// TypeSet 不可变的类型集合，显式传递给需要校验类型的组件.
type TypeSet struct {
	values []PublicationType
}

// PublicationTypes 默认类型集合.
var PublicationTypes = NewTypeSet(
	"Tesis",
	"Trabajo Fin de Estudios",
	"Congreso",
	"Revista",
	"Preprint",
	"Libro",
)

// NewTypeSet 创建类型集合.
func NewTypeSet(values ...PublicationType) TypeSet {
	return TypeSet{values: slices.Clone(values)}
}

// Parse 校验类型，去除首尾空白后必须与集合中某一项完全相同.
func (s TypeSet) Parse(raw string) (PublicationType, bool) {
	t := PublicationType(strings.TrimSpace(raw))
	if t == "" || !slices.Contains(s.values, t) {
		return "", false
	}

	return t, true
}

// Nullable 返回适合写入可空列的值，非法类型为 nil.
func (s TypeSet) Nullable(raw string) *string {
	t, ok := s.Parse(raw)
	if !ok {
		return nil
	}

	v := string(t)

	return &v
}

// Values 返回集合副本.
func (s TypeSet) Values() []PublicationType {
	return slices.Clone(s.values)
}

// TruncateTitle 按字符截断标题，超长时以 TitleEllipsis 结尾且总长恰为 MaxTitleLength.
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}

	runes := []rune(title)
	keep := MaxTitleLength - utf8.RuneCountInString(TitleEllipsis)

	return string(runes[:keep]) + TitleEllipsis
}
