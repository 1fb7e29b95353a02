package clicks

import "strings"

// Coarse keyword classification. Anything finer belongs in a dedicated
// user-agent parser downstream; the event only needs broad buckets for
// rollup dimensions.

// DetectDeviceType classifies a User-Agent into bot, mobile, tablet,
// desktop, or unknown.
func DetectDeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, keyword := range []string{"bot", "crawler", "spider", "scraper", "curl", "wget"} {
		if strings.Contains(ua, keyword) {
			return "bot"
		}
	}

	for _, keyword := range []string{"ipad", "tablet"} {
		if strings.Contains(ua, keyword) {
			return "tablet"
		}
	}

	for _, keyword := range []string{"mobile", "android", "iphone", "ipod", "windows phone"} {
		if strings.Contains(ua, keyword) {
			return "mobile"
		}
	}

	if strings.Contains(ua, "mozilla") || strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") {
		return "desktop"
	}

	return "unknown"
}

// DetectBrowser returns a coarse browser family name.
func DetectBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge"):
		return "edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "chrome"):
		return "chrome"
	case strings.Contains(ua, "firefox"):
		return "firefox"
	case strings.Contains(ua, "safari"):
		return "safari"
	default:
		return "other"
	}
}

// DetectOS returns a coarse operating system family name.
func DetectOS(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "ios"
	case strings.Contains(ua, "windows"):
		return "windows"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"):
		return "macos"
	case strings.Contains(ua, "linux"):
		return "linux"
	default:
		return "other"
	}
}
