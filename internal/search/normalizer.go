package search

import (
	"strings"
	"unicode"
)

const defaultExcerptLength = 300

// Normalizer 将各源的原始结果整形为统一格式
// 纯函数集合：截断摘要、补齐缺省元数据、钳制分数
type Normalizer struct {
	excerptLength int
}

// NewNormalizer 创建归一化器
func NewNormalizer(excerptLength int) *Normalizer {
	if excerptLength <= 0 {
		excerptLength = defaultExcerptLength
	}
	return &Normalizer{excerptLength: excerptLength}
}

// Normalize 整形单条结果
func (n *Normalizer) Normalize(source Source, in Result) Result {
	out := in
	out.Source = source
	out.Score = clampScore(in.Score)
	out.Title = strings.TrimSpace(in.Title)
	out.Content = TruncateAtWordBoundary(strings.TrimSpace(in.Content), n.excerptLength)
	if out.Metadata == nil {
		out.Metadata = make(map[string]interface{})
	}
	return out
}

// NormalizeAll 整形一组结果
func (n *Normalizer) NormalizeAll(source Source, in []Result) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		out = append(out, n.Normalize(source, r))
	}
	return out
}

// TruncateAtWordBoundary 在词边界截断文本，不切断单词
func TruncateAtWordBoundary(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	// 从上限位置向前回退到最近的空白处
	cut := maxLen
	for cut > 0 && !unicode.IsSpace(runes[cut-1]) && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		// 整段无空白（如长URL或CJK文本），只能硬截断
		cut = maxLen
	}

	return strings.TrimRight(string(runes[:cut]), " \t\n")
}

// clampScore 钳制分数到[0,1]，上游provider偶有越界值
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// normalizeTitle 用于跨源去重的标题归一化：小写、折叠空白
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
