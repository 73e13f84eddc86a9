// Package postprocess 承载转录完成后的可选精加工：语言兜底检测、
// LLM 拼写/语法校正和启发式说话人标注。
package postprocess

import "unicode"

// DetectLanguage 在服务商没有返回语言时，用 拉丁字母/中文字符 占比做兜底判断。
//
// 阈值直接对应规格里给出的判定规则，不做任何本地化的聪明猜测。
func DetectLanguage(text string) string {
	var latin, cjk, total int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			cjk++
			total++
		case unicode.IsLetter(r) && r <= unicode.MaxASCII:
			latin++
			total++
		case unicode.IsLetter(r):
			total++
		}
	}

	if total == 0 {
		return "en"
	}

	latinRatio := float64(latin) / float64(total)
	cjkRatio := float64(cjk) / float64(total)

	if latinRatio > 0.5 || (latin > 2*cjk && latin > 100) {
		return "en"
	}
	if cjkRatio > 0.3 || cjk > 50 {
		return "zh"
	}
	return "en"
}
