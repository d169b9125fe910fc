package domain

import "regexp"

// identifierPattern 标识符文法：仅允许字母、数字和下划线
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// IsValidIdentifier 校验标识符是否满足文法和长度上限
func IsValidIdentifier(identifier string, maxLength int) bool {
	if identifier == "" || len(identifier) > maxLength {
		return false
	}
	return identifierPattern.MatchString(identifier)
}

// IsValidPrefix 校验前缀长度是否在允许范围内（前缀允许任意字符）
func IsValidPrefix(prefix string, minLength, maxLength int) bool {
	return len(prefix) >= minLength && len(prefix) <= maxLength
}
