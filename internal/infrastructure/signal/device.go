package signal

import (
	"strings"

	"huddle/internal/core/domain"
)

// mobileIdentifiers are the User-Agent fragments that classify a connection
// as mobile. Matching is case-insensitive and happens once, at accept time.
var mobileIdentifiers = []string{
	"android",
	"iphone",
	"ipad",
	"ipod",
	"mobile",
	"windows phone",
	"blackberry",
	"opera mini",
	"iemobile",
}

// ClassifyDevice derives the device class from the User-Agent header. An
// empty or unrecognized agent is treated as desktop.
func ClassifyDevice(userAgent string) domain.DeviceClass {
	ua := strings.ToLower(userAgent)
	for _, marker := range mobileIdentifiers {
		if strings.Contains(ua, marker) {
			return domain.DeviceMobile
		}
	}
	return domain.DeviceDesktop
}
