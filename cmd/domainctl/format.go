package main

import "strings"

func upper(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ToUpper(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// isHostname is a loose check used to label CNAME targets in output.
func isHostname(s string) bool {
	return strings.Contains(s, ".") && !strings.ContainsAny(s, " =")
}
