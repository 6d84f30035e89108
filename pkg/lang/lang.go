// Package lang 定义页面翻译支持的两种语言及其检测规则
package lang

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

// Code 语言代码，只允许 Chinese 与 English 两个值
type Code string

const (
	// Chinese 中文（CJK 统一表意文字）
	Chinese Code = "zh"
	// English 英文（ASCII 字母）
	English Code = "en"
)

// ErrUnsupportedLanguage 不支持的语言代码
var ErrUnsupportedLanguage = errors.New("unsupported language code")

// Supported 返回所有支持的语言
func Supported() []Code {
	return []Code{Chinese, English}
}

// Parse 解析语言代码，只接受 zh 和 en（大小写不敏感）
func Parse(s string) (Code, error) {
	switch Code(strings.ToLower(strings.TrimSpace(s))) {
	case Chinese:
		return Chinese, nil
	case English:
		return English, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
	}
}

// Valid 是否为支持的语言
func (c Code) Valid() bool {
	return c == Chinese || c == English
}

// Other 返回另一种语言，翻译目标总是当前语言的另一种
func (c Code) Other() Code {
	if c == Chinese {
		return English
	}
	return Chinese
}

// Name 返回语言的显示名称
func (c Code) Name() string {
	switch c {
	case Chinese:
		return "中文"
	case English:
		return "English"
	default:
		return string(c)
	}
}

func (c Code) String() string {
	return string(c)
}

// IsHan 是否为中文字符
func IsHan(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

// IsLatin 是否为 ASCII 字母
func IsLatin(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// Detect 通过统计中文字符与英文字母的数量判断文本语言。
// 中文字符更多时返回 Chinese，否则（包括相等和空字符串）返回 English。
func Detect(text string) Code {
	han, latin := 0, 0
	for _, r := range text {
		switch {
		case IsHan(r):
			han++
		case IsLatin(r):
			latin++
		}
	}
	if han > latin {
		return Chinese
	}
	return English
}

var localeMatcher = language.NewMatcher([]language.Tag{language.Chinese, language.English})

// FromLocale 根据系统 locale（如 zh_CN.UTF-8、en-US）推断语言
func FromLocale(locale string) (Code, bool) {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "" || locale == "C" || locale == "POSIX" {
		return "", false
	}

	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return "", false
	}

	_, index, confidence := localeMatcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return Supported()[index], true
}

// EnvLocale 从环境变量中读取当前 locale
func EnvLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
