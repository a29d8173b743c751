package pipeline

import "strings"

// SplitText 将长文本按 rune 数切分，相邻块重叠 overlap 个字符。
// overlap 不小于 size 时退化为不重叠切分。
func SplitText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	step := size - overlap
	if overlap < 0 || step <= 0 {
		step = size
	}

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
