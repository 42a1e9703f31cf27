// Package device summarizes the submitting client's user agent.
package device

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent renders a short display label such as "Chrome on Intel Mac OS X 10_15_7".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}

	label := fmt.Sprintf("%s on %s", browser, os)
	if ua.Mobile() {
		label += " (mobile)"
	}
	return strings.TrimSpace(label)
}
