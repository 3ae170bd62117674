package utils

import "strings"

// StringValue dereferences a possibly nil string pointer
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CleanQueryParam trims a query value and treats "null" as empty
func CleanQueryParam(param string) string {
	param = strings.TrimSpace(param)
	if param == "" || strings.EqualFold(param, "null") {
		return ""
	}
	return param
}
