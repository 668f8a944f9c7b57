// Package filename 生成安全、有长度上限、不冲突的存储文件名.
//
// Sanitize 是纯函数：唯一前缀由调用方生成（NewPrefix）后传入，便于测试.
package filename

import (
	"crypto/rand"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MinBaseLength 基础名至少保留的字符数.
	MinBaseLength = 10
	// Fallback 基础名被清空时的替代.
	Fallback = "file"
)

var (
	disallowed = regexp.MustCompile(`[^A-Za-z0-9 _.\-]`)
	spaces     = regexp.MustCompile(`\s+`)
)

// Sanitize 返回 prefix + base + "." + ext，保证结果字符数不超过 maxTotal.
// 扩展名取最后一个 '.' 之后的部分并转小写；base 转写为 ASCII，只保留字母、数字、空格、'_'、'-'、'.'.
func Sanitize(originalName, prefix string, maxTotal int) string {
	base, ext := Split(originalName)
	base = clean(base)

	dotExt := ""
	if ext != "" {
		dotExt = "." + ext
	}

	room := maxTotal - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(dotExt)
	if room < MinBaseLength {
		room = MinBaseLength
	}

	base = TruncateRunes(base, room)
	if base == "" {
		base = Fallback
	}

	return clamp(prefix+base, dotExt, maxTotal)
}

// Split 拆分基础名和小写扩展名. 没有 '.' 或以 '.' 结尾时扩展名为空.
func Split(name string) (base, ext string) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return strings.TrimSuffix(name, "."), ""
	}

	return name[:i], strings.ToLower(name[i+1:])
}

// TruncateRunes 按字符（而非字节）截断.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}

	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}

// NewPrefix 生成唯一前缀（小写 ULID + '-'）.
func NewPrefix() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)

	return strings.ToLower(id.String()) + "-"
}

func clean(base string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	ascii, _, err := transform.String(t, base)
	if err != nil {
		ascii = base
	}

	ascii = disallowed.ReplaceAllString(ascii, "")
	ascii = spaces.ReplaceAllString(ascii, " ")

	return strings.TrimSpace(ascii)
}

// clamp 最终兜底：超长时先截 head（base 在前缀之后，先被截掉），保留扩展名.
func clamp(head, dotExt string, maxTotal int) string {
	extLen := utf8.RuneCountInString(dotExt)
	if utf8.RuneCountInString(head)+extLen <= maxTotal {
		return head + dotExt
	}

	if maxTotal <= extLen {
		return TruncateRunes(head+dotExt, maxTotal)
	}

	return TruncateRunes(head, maxTotal-extLen) + dotExt
}
