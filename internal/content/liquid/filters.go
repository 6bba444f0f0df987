package liquid

import (
	"fmt"
	"strings"
)

// toSentence joins items as "a, b, and c". When key is set, items are objects and key names the field to print.
func toSentence(items []interface{}, key string) string {
	words := collectWords(items, key)
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	case 2:
		return words[0] + " and " + words[1]
	}
	return strings.Join(words[:len(words)-1], ", ") + ", and " + words[len(words)-1]
}

// pluralize picks singular or plural by count and prefixes the count.
func pluralize(count interface{}, singular, plural string) string {
	n := toInt(count)
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// digest renders "a, b and 3 others" for digest event lists.
func digest(items []interface{}, key string) string {
	words := collectWords(items, key)
	const shown = 2
	switch {
	case len(words) == 0:
		return ""
	case len(words) <= shown:
		return strings.Join(words, " and ")
	}
	rest := len(words) - shown
	suffix := "others"
	if rest == 1 {
		suffix = "other"
	}
	return fmt.Sprintf("%s and %d %s", strings.Join(words[:shown], ", "), rest, suffix)
}

func collectWords(items []interface{}, key string) []string {
	words := make([]string, 0, len(items))
	for _, item := range items {
		if key != "" {
			if m, ok := item.(map[string]interface{}); ok {
				item = lookup(m, key)
			}
		}
		if item == nil {
			continue
		}
		words = append(words, fmt.Sprint(item))
	}
	return words
}

func lookup(m map[string]interface{}, path string) interface{} {
	var cur interface{} = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case []interface{}:
		return len(n)
	case string:
		var out int
		_, _ = fmt.Sscanf(n, "%d", &out)
		return out
	}
	return 0
}
