package utils

import "strings"

// NormalizePhone converts a phone number to E.164, defaulting to +91 for
// bare 10-digit numbers. Spaces and dashes are stripped, international
// double-zero and trunk-zero prefixes are removed.
func NormalizePhone(raw string) string {
	phone := strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""), "-", "")
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	if strings.HasPrefix(phone, "00") {
		phone = phone[2:]
	}
	if strings.HasPrefix(phone, "0") {
		phone = phone[1:]
	}
	if len(phone) == 10 && isDigits(phone) {
		return "+91" + phone
	}
	if !strings.HasPrefix(phone, "+") {
		return "+" + phone
	}
	return phone
}

// MaskPhone hides all but the last four digits for log and API output.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
