package utils

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// Indian vehicle registrations: state code, district number, optional
	// series, four digit number (e.g. AP05BC1234). BH-series plates also pass.
	vehicleRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{4}$`)
	aadhaarRe = regexp.MustCompile(`^[2-9][0-9]{11}$`)
)

// IsValidEmail performs a light syntactic email check
func IsValidEmail(email string) bool {
	return emailRe.MatchString(strings.TrimSpace(email))
}

// IsValidVehicleNumber checks an Indian vehicle registration plate.
// Spaces and dashes are ignored so "AP 05 BC 1234" and "AP-05-BC-1234" pass.
func IsValidVehicleNumber(plate string) bool {
	clean := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(plate), " ", ""), "-", ""))
	return vehicleRe.MatchString(clean)
}

// IsValidAadhaar checks the shape of an Aadhaar number: 12 digits, first
// digit 2-9. Spaces are ignored. The Verhoeff checksum is not verified.
func IsValidAadhaar(number string) bool {
	clean := strings.ReplaceAll(strings.TrimSpace(number), " ", "")
	return aadhaarRe.MatchString(clean)
}
