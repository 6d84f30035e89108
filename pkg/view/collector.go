// Package view 收集 HTML 视图树中的可见文本，并把译文写回原位置
package view

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// DefaultSkipElements 不包含可见文本的容器，其子树整体跳过
var DefaultSkipElements = []string{
	"script", "style", "noscript", "template", "iframe", "svg", "math",
}

// Fragment 文本片段，Node 指向视图树中的文本节点
type Fragment struct {
	Node *html.Node
	Raw  string
}

// Text 返回去掉首尾空白的文本，译文映射以它为键
func (f Fragment) Text() string {
	return strings.TrimSpace(f.Raw)
}

// Collector 文本收集器
type Collector struct {
	skipElements         map[string]bool
	respectTranslateAttr bool
}

// CollectorOption 收集器选项
type CollectorOption func(*Collector)

// WithSkipElements 替换跳过的元素列表
func WithSkipElements(tags ...string) CollectorOption {
	return func(c *Collector) {
		c.skipElements = make(map[string]bool, len(tags))
		for _, tag := range tags {
			c.skipElements[strings.ToLower(tag)] = true
		}
	}
}

// WithTranslateAttr 是否尊重 translate="no" 属性
func WithTranslateAttr(respect bool) CollectorOption {
	return func(c *Collector) {
		c.respectTranslateAttr = respect
	}
}

// NewCollector 创建文本收集器
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		respectTranslateAttr: true,
	}
	WithSkipElements(DefaultSkipElements...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect 以先序遍历收集 root 下所有非空文本节点，顺序与文档顺序一致
func (c *Collector) Collect(root *html.Node) []Fragment {
	var fragments []Fragment
	if root == nil {
		return fragments
	}
	c.walk(root, &fragments)
	return fragments
}

func (c *Collector) walk(n *html.Node, out *[]Fragment) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) != "" {
			*out = append(*out, Fragment{Node: n, Raw: n.Data})
		}
		return
	case html.CommentNode, html.DoctypeNode, html.RawNode:
		return
	case html.ElementNode:
		if c.skipElements[strings.ToLower(n.Data)] {
			return
		}
		if c.respectTranslateAttr && translateDisabled(n) {
			return
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.walk(child, out)
	}
}

// translateDisabled 元素是否带有 translate="no"
func translateDisabled(n *html.Node) bool {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, "translate") && strings.EqualFold(strings.TrimSpace(attr.Val), "no") {
			return true
		}
	}
	return false
}

var defaultCollector = NewCollector()

// Collect 使用默认收集器收集文本片段
func Collect(root *html.Node) []Fragment {
	return defaultCollector.Collect(root)
}

// Unique 按首次出现的顺序去重，keep 为 nil 时保留全部文本
func Unique(fragments []Fragment, keep func(string) bool) []string {
	seen := make(map[string]struct{}, len(fragments))
	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		text := f.Text()
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		if keep != nil && !keep(text) {
			continue
		}
		texts = append(texts, text)
	}
	return texts
}

// Apply 把译文写回片段所在的节点，返回改写的节点数。
// 译文与原文相同、或节点已被改写的片段保持不变，重复调用不会产生新的改动。
func Apply(fragments []Fragment, translations map[string]string) int {
	rewritten := 0
	for _, f := range fragments {
		if f.Node == nil || f.Node.Data != f.Raw {
			continue
		}
		source := f.Text()
		translated, ok := translations[source]
		if !ok || translated == "" || translated == source {
			continue
		}

		leading := f.Raw[:len(f.Raw)-len(strings.TrimLeftFunc(f.Raw, unicode.IsSpace))]
		trailing := f.Raw[len(strings.TrimRightFunc(f.Raw, unicode.IsSpace)):]
		f.Node.Data = leading + translated + trailing
		rewritten++
	}
	return rewritten
}
