package processing

import (
	"regexp"
	"strings"
)

// legacyCodeRE matches legacy formatting codes (section sign plus one code
// character) that servers embed in otherwise plain strings.
var legacyCodeRE = regexp.MustCompile("§.")

// FlattenDescription flattens a status description into plain text.
// Descriptions arrive either as a plain string or as a rich-text component
// tree (objects with text/translate and nested extra arrays). Returns false
// when the value cannot be interpreted as rich text at all, in which case
// the whole response is rejected.
func FlattenDescription(v interface{}) (string, bool) {
	var sb strings.Builder
	if !flattenComponent(v, &sb) {
		return "", false
	}
	return legacyCodeRE.ReplaceAllString(sb.String(), ""), true
}

func flattenComponent(v interface{}, sb *strings.Builder) bool {
	switch c := v.(type) {
	case string:
		sb.WriteString(c)
		return true
	case []interface{}:
		for _, child := range c {
			if !flattenComponent(child, sb) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		if text, ok := c["text"].(string); ok {
			sb.WriteString(text)
		} else if translate, ok := c["translate"].(string); ok {
			// No translation tables here; the key itself is the best
			// stable stand-in for matching and display.
			sb.WriteString(translate)
		}
		if extra, ok := c["extra"].([]interface{}); ok {
			for _, child := range extra {
				if !flattenComponent(child, sb) {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}
