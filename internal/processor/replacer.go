// Package processor 实现标记替换算法与批量替换流程。
//
// 底层格式经常把一段逻辑上连续的文本拆成同一运行容器内的多个相邻
// 文本叶节点（拼写检查标记、增量编辑都会造成这种拆分），标记的字符
// 因此可能跨越节点边界。替换算法对同一份正文执行两趟：
//
// 第一趟（包含趟）：替换完整落在单个文本叶节点内的标记，节点标签与
// 属性不动。第二趟（碎片趟）：逐个运行容器拼接其直接持有的文本叶
// 节点内容，若拼接结果仍含已配置的标记则在拼接串上替换，并把该运行
// 容器折叠为单个文本叶节点（继承首个叶节点的属性）。
//
// 两趟的先后是显式策略：先包含趟、后碎片趟，与测试共同固定；两趟
// 在对抗性输入下不可交换，顺序不能依赖迭代巧合。
package processor

import (
	"regexp"
	"strings"
)

// 文本叶节点与运行容器。运行容器在该方言中不会嵌套。
var (
	textLeafPattern = regexp.MustCompile(`<w:t([^>]*)>([^<]*)</w:t>`)
	runPattern      = regexp.MustCompile(`(?s)<w:r(?:\s[^>]*)?>.*?</w:r>`)
)

// xmlEscaper 替换值插入前的XML转义
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML 对替换值做XML转义，除此之外不做任何解释
func EscapeXML(value string) string {
	return xmlEscaper.Replace(value)
}

// markerPattern 构建与探测端一致的标记模式
func markerPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(prefix) + `([A-Za-z0-9_]+)`)
}

// ReplaceMarkers 将 values 中每个 prefix+identifier 的出现替换为对应值
// （空值表示整体删除），返回新正文与替换次数。未命中的标记原样保留，
// 这不是错误。values 为空时原样返回输入，逐字节不变。
func ReplaceMarkers(bodyXML string, prefix string, values map[string]string) (string, int) {
	if len(values) == 0 || prefix == "" {
		return bodyXML, 0
	}

	pattern := markerPattern(prefix)

	result, contained := containedPass(bodyXML, prefix, pattern, values)
	result, fragmented := fragmentedPass(result, prefix, pattern, values)
	return result, contained + fragmented
}

// substituteInText 在纯字符内容上执行标记替换。
// 匹配是最大化的：标识符捕获贪婪吞掉全部词字符，values 中不存在的
// 标识符（包括比已配置标识符更长的词字符串）原样保留。
func substituteInText(text string, prefix string, pattern *regexp.Regexp, values map[string]string) (string, int) {
	count := 0
	result := pattern.ReplaceAllStringFunc(text, func(match string) string {
		identifier := match[len(prefix):]
		value, exists := values[identifier]
		if !exists {
			return match
		}
		count++
		if value == "" {
			return ""
		}
		return EscapeXML(value)
	})
	return result, count
}

// containedPass 第一趟：只处理完整落在单个文本叶节点内的标记
func containedPass(bodyXML string, prefix string, pattern *regexp.Regexp, values map[string]string) (string, int) {
	total := 0
	result := textLeafPattern.ReplaceAllStringFunc(bodyXML, func(node string) string {
		parts := textLeafPattern.FindStringSubmatch(node)
		attrs, content := parts[1], parts[2]

		newContent, count := substituteInText(content, prefix, pattern, values)
		if count == 0 {
			return node
		}
		total += count
		// 空值会留下空叶节点，节点本身保留
		return "<w:t" + attrs + ">" + newContent + "</w:t>"
	})
	return result, total
}

// fragmentedPass 第二趟：逐运行容器拼接文本叶内容，处理跨节点标记。
// 命中时整个运行容器折叠为单个文本叶节点，继承首个叶节点的属性
// （如 xml:space="preserve"），其余叶节点丢弃；叶节点之间的非文本
// 子元素保留。下游只读取字符内容，多叶折叠为单叶是可接受的。
func fragmentedPass(bodyXML string, prefix string, pattern *regexp.Regexp, values map[string]string) (string, int) {
	total := 0
	result := runPattern.ReplaceAllStringFunc(bodyXML, func(run string) string {
		leaves := textLeafPattern.FindAllStringSubmatchIndex(run, -1)
		if len(leaves) == 0 {
			return run
		}

		var concat strings.Builder
		for _, leaf := range leaves {
			// 组2为字符内容
			concat.WriteString(run[leaf[4]:leaf[5]])
		}

		if !containsConfiguredMarker(concat.String(), prefix, pattern, values) {
			return run
		}

		newText, count := substituteInText(concat.String(), prefix, pattern, values)
		total += count

		// 组1为首个叶节点的属性串
		firstAttrs := run[leaves[0][2]:leaves[0][3]]
		consolidated := "<w:t" + firstAttrs + ">" + newText + "</w:t>"

		var rebuilt strings.Builder
		rebuilt.WriteString(run[:leaves[0][0]])
		rebuilt.WriteString(consolidated)
		for i := 1; i < len(leaves); i++ {
			// 保留叶节点之间的其他内容，丢弃后续叶节点本身
			rebuilt.WriteString(run[leaves[i-1][1]:leaves[i][0]])
		}
		rebuilt.WriteString(run[leaves[len(leaves)-1][1]:])
		return rebuilt.String()
	})
	return result, total
}

// containsConfiguredMarker 判断文本中是否存在已配置标识符的标记
func containsConfiguredMarker(text string, prefix string, pattern *regexp.Regexp, values map[string]string) bool {
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		if _, exists := values[match[1]]; exists {
			return true
		}
	}
	return false
}
