package utils

import (
	"regexp"
	"strings"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	keywordPatterns   = buildKeywordPatterns()
)

// sqlKeywords 不允许作为表名或列名的 SQL 关键字
var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"EXEC", "EXECUTE", "UNION", "SCRIPT", "DECLARE", "CAST", "CONVERT",
	"FROM", "WHERE", "ORDER", "BY", "GROUP", "HAVING", "JOIN", "INNER",
	"OUTER", "LEFT", "RIGHT", "ON", "AS", "AND", "OR", "NOT", "IN",
	"TABLE", "TRUNCATE", "GRANT",
}

func buildKeywordPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(sqlKeywords))
	for _, keyword := range sqlKeywords {
		patterns = append(patterns, regexp.MustCompile(`^`+regexp.QuoteMeta(keyword)+`$`))
	}
	return patterns
}

// ValidateIdentifier 验证表名、列名,防止 SQL 注入
// 只允许字母、数字和下划线,不能以数字开头,不能是 SQL 关键字
func ValidateIdentifier(name string) error {
	if name == "" {
		return ErrEmptyIdentifier
	}
	if len(name) > 64 {
		return ErrIdentifierTooLong
	}
	if !identifierPattern.MatchString(name) {
		return ErrInvalidIdentifier
	}

	upper := strings.ToUpper(name)
	for _, pattern := range keywordPatterns {
		if pattern.MatchString(upper) {
			return ErrReservedIdentifier
		}
	}
	return nil
}
