// Package bibtex 从 BibTeX 文件中提取出版物的期刊/会议名称.
//
// 只做行级扫描，不是完整的 BibTeX 解析器：识别条目起始行和
// journal/journaltitle/booktitle 字段，字段值可以跨行.
package bibtex

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strings"
)

// ErrNoVenue 第一个条目中没有 journal 或 booktitle.
var ErrNoVenue = errors.New("bibtex: no journal or booktitle field")

var (
	// @type{key, 或 @type(key,
	entryStartRegex = regexp.MustCompile(`^\s*@(\w+)\s*[\{(]`)
	// journal = {value} / "value" / macro，行首或逗号之后
	venueFieldRegex = regexp.MustCompile(`(?i)(?:^|,)\s*(journal|journaltitle|booktitle)\s*=\s*`)
	spaceRegex      = regexp.MustCompile(`\s+`)
)

// 不是文献条目的特殊块.
var nonEntries = map[string]bool{"comment": true, "string": true, "preamble": true}

// ParseVenue 返回第一个条目的 journal（或 journaltitle），没有时回退到 booktitle.
func ParseVenue(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		inEntry   bool
		journal   string
		booktitle string
	)

	for scanner.Scan() {
		line := scanner.Text()

		if m := entryStartRegex.FindStringSubmatch(line); m != nil {
			if nonEntries[strings.ToLower(m[1])] {
				continue
			}

			if inEntry {
				break // 只看第一个条目
			}

			inEntry = true
			// 字段可能与条目头在同一行：@article{key, journal = {X},
			if i := strings.Index(line, ","); i >= 0 {
				line = line[i+1:]
			} else {
				continue
			}
		}

		if !inEntry {
			continue
		}

		// 一行可以有多个字段：title = {X}, journal = {Y},
		for _, m := range venueFieldRegex.FindAllStringSubmatchIndex(line, -1) {
			value := readValue(line[m[1]:], scanner)

			switch strings.ToLower(line[m[2]:m[3]]) {
			case "journal", "journaltitle":
				if journal == "" {
					journal = value
				}
			case "booktitle":
				if booktitle == "" {
					booktitle = value
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	if journal != "" {
		return journal, nil
	}

	if booktitle != "" {
		return booktitle, nil
	}

	return "", ErrNoVenue
}

// readValue 读取字段值，花括号/引号未闭合时继续读下一行.
func readValue(rest string, scanner *bufio.Scanner) string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return ""
	}

	switch rest[0] {
	case '{':
		return clean(collect(rest, scanner, braceEnd))
	case '"':
		return clean(collect(rest, scanner, quoteEnd))
	default:
		// 未加引号的宏或数字
		end := strings.IndexAny(rest, ",}")
		if end >= 0 {
			rest = rest[:end]
		}

		return clean(rest)
	}
}

// collect 拼接行直到 end 找到闭合位置，返回去掉外层定界符的内容.
func collect(text string, scanner *bufio.Scanner, end func(string) int) string {
	for {
		if i := end(text); i >= 0 {
			return text[1:i]
		}

		if !scanner.Scan() {
			return text[1:]
		}

		text += " " + scanner.Text()
	}
}

// braceEnd 返回与首个 '{' 匹配的 '}' 下标.
func braceEnd(s string) int {
	depth := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// quoteEnd 返回闭合 '"' 的下标（花括号内的引号不算）.
func quoteEnd(s string) int {
	depth := 0

	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

var unescaper = strings.NewReplacer(`\&`, "&", `\%`, "%", `\_`, "_", `\$`, "$", `\#`, "#", "{", "", "}", "")

func clean(v string) string {
	v = unescaper.Replace(v)
	v = spaceRegex.ReplaceAllString(v, " ")

	return strings.TrimSpace(v)
}
