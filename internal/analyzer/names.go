package analyzer

import (
	"math"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/text/cases"
)

// 引用列常见后缀/前缀
var (
	keySuffixes = map[string]bool{"id": true, "code": true, "cod": true, "key": true, "no": true, "num": true, "number": true, "fk": true, "pk": true, "uuid": true}
	keyPrefixes = map[string]bool{"fk": true, "pk": true, "cod": true, "id": true, "c": true}
)

// nameTokens 按分隔符和驼峰拆分列名，统一做大小写折叠
func nameTokens(name string) []string {
	fold := cases.Fold()
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, fold.String(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}

// normalizeName 折叠大小写、去掉分隔符和引用类前后缀，用于列名匹配
func normalizeName(name string) string {
	tokens := nameTokens(name)
	for len(tokens) > 1 && keySuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	for len(tokens) > 1 && keyPrefixes[tokens[0]] {
		tokens = tokens[1:]
	}
	return strings.Join(tokens, "")
}

// entityStem 数据集名的单数形式，orders -> order
func entityStem(datasetName string) string {
	tokens := nameTokens(datasetName)
	if len(tokens) == 0 {
		return ""
	}
	tokens[len(tokens)-1] = inflection.Singular(tokens[len(tokens)-1])
	return strings.Join(tokens, "")
}

// identifierLike 列名是否像标识符（以 id/code 等结尾）
func identifierLike(name string) bool {
	tokens := nameTokens(name)
	if len(tokens) == 0 {
		return false
	}
	if keySuffixes[tokens[len(tokens)-1]] {
		return true
	}
	last := tokens[len(tokens)-1]
	return strings.HasSuffix(last, "id") || strings.HasSuffix(last, "code")
}

// hasToken 列名是否包含任一词元（词元级或子串级）
func hasToken(name string, candidates ...string) bool {
	tokens := nameTokens(name)
	joined := strings.Join(tokens, "_")
	for _, c := range candidates {
		for _, t := range tokens {
			if t == c {
				return true
			}
		}
		if len(c) >= 4 && strings.Contains(joined, c) {
			return true
		}
	}
	return false
}

// nameSimilarity 计算命名相似度
func nameSimilarity(name1, name2 string) float64 {
	n1 := normalizeName(name1)
	n2 := normalizeName(name2)
	if n1 == "" || n2 == "" {
		return 0
	}

	// 完全匹配
	if n1 == n2 {
		return 1.0
	}

	// 包含关系，过短的词不算
	if len(n1) >= 3 && len(n2) >= 3 && (strings.Contains(n1, n2) || strings.Contains(n2, n1)) {
		return 0.8
	}

	// Levenshtein 距离
	r1, r2 := []rune(n1), []rune(n2)
	maxLen := math.Max(float64(len(r1)), float64(len(r2)))
	distance := levenshtein.DistanceForStrings(r1, r2, levenshtein.DefaultOptions)
	similarity := 1.0 - float64(distance)/maxLen
	if similarity > 0.7 {
		return similarity
	}
	return 0
}

// nameMatch 显式外键的命名证据：列名规范化后相等、等于目标数据集实体名，或编辑距离足够接近
func nameMatch(source, targetColumn, targetDataset string, minSimilarity float64) (float64, string) {
	ns, nt := normalizeName(source), normalizeName(targetColumn)
	if ns == "" {
		return 0, ""
	}
	if ns == nt {
		return 1.0, "normalized names are equal"
	}
	if identifierLike(targetColumn) && ns == entityStem(targetDataset) {
		return 0.9, "column names the referenced dataset"
	}
	if sim := nameSimilarity(source, targetColumn); sim >= minSimilarity && sim < 1 {
		return sim, "similar names"
	}
	return 0, ""
}
