package tracker

import (
	"strings"

	"sellerpulse/api/models"
)

var tabletPatterns = []string{"ipad", "tablet", "kindle", "silk", "playbook"}

var mobilePatterns = []string{"mobi", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini", "iemobile"}

// ClassifyDevice buckets a user-agent string into mobile, tablet, or
// desktop. Tablet patterns are checked first: tablet UAs also match the
// generic mobile substrings and would otherwise misclassify as phones.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, p := range tabletPatterns {
		if strings.Contains(ua, p) {
			return models.DeviceTablet
		}
	}
	for _, p := range mobilePatterns {
		if strings.Contains(ua, p) {
			return models.DeviceMobile
		}
	}
	return models.DeviceDesktop
}

// CaptureContext takes a pure snapshot of the client context. Unknown
// fields stay empty; nothing here errors.
func CaptureContext(userAgent, platform, email string) models.DeviceInfo {
	return models.DeviceInfo{
		Device:    ClassifyDevice(userAgent),
		UserAgent: userAgent,
		Platform:  platform,
		Email:     email,
	}
}
