package view

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// Document 已解析的 HTML 页面
type Document struct {
	doc     *goquery.Document
	charset string
}

// Load 从 reader 解析 HTML 页面，非 UTF-8 页面先转码，输出统一为 UTF-8
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	content, name, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s html: %w", name, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{doc: doc, charset: name}
	if name != charsetUTF8 {
		d.normalizeCharset()
	}
	return d, nil
}

// Charset 返回页面的原始编码
func (d *Document) Charset() string {
	return d.charset
}

// LoadString 从字符串解析 HTML 页面
func LoadString(s string) (*Document, error) {
	return Load(strings.NewReader(s))
}

// Root 返回视图树的根节点
func (d *Document) Root() *html.Node {
	if d == nil || d.doc == nil || len(d.doc.Nodes) == 0 {
		return nil
	}
	return d.doc.Nodes[0]
}

// Selection 返回整个文档的 goquery 选择器
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// Lang 返回 <html lang> 属性声明的语言
func (d *Document) Lang() (lang.Code, bool) {
	val, ok := d.doc.Find("html").First().Attr("lang")
	if !ok {
		return "", false
	}
	if code, err := lang.Parse(val); err == nil {
		return code, true
	}
	return lang.FromLocale(val)
}

// SetLang 更新 <html lang> 属性
func (d *Document) SetLang(code lang.Code) {
	d.doc.Find("html").First().SetAttr("lang", code.String())
}

// Render 输出 HTML
func (d *Document) Render(w io.Writer) error {
	root := d.Root()
	if root == nil {
		return fmt.Errorf("document is empty")
	}
	return html.Render(w, root)
}

// HTML 返回渲染后的 HTML 字符串
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
