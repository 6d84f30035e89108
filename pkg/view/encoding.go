package view

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

const charsetUTF8 = "utf-8"

// decode 把页面内容转换为 UTF-8，返回原始编码名称。
// 按 BOM、<meta charset> 判断编码；未声明且不是合法 UTF-8 时优先尝试 GB18030。
func decode(data []byte) ([]byte, string, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF")), charsetUTF8, nil
	}

	enc, name, _ := charset.DetermineEncoding(data, "")
	if name == "windows-1252" {
		if res, err := decodeWith(data, simplifiedchinese.GB18030); err == nil && containsHan(res) {
			return res, "gb18030", nil
		}
	}

	res, err := decodeWith(data, enc)
	if err != nil {
		return nil, "", err
	}
	return res, name, nil
}

func decodeWith(data []byte, enc encoding.Encoding) ([]byte, error) {
	return io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
}

func containsHan(data []byte) bool {
	for _, r := range string(data) {
		if lang.IsHan(r) {
			return true
		}
	}
	return false
}

// normalizeCharset 输出统一为 UTF-8，更新页面中的编码声明
func (d *Document) normalizeCharset() {
	d.doc.Find("meta[charset]").SetAttr("charset", charsetUTF8)
	d.doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if strings.EqualFold(equiv, "content-type") {
			s.SetAttr("content", "text/html; charset="+charsetUTF8)
		}
	})
}
