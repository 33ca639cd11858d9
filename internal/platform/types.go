package platform

import (
	"fmt"
	"strings"
	"time"
)

// OpenOptions controls how a driver opens its document.
type OpenOptions struct {
	URL         string        // Page to load (browser drivers)
	HTMLPath    string        // Static HTML file (html driver)
	Headless    bool          // Run the browser without a window
	Stealth     bool          // Patch common automation fingerprints (rod)
	Timeout     time.Duration // Upper bound on the initial page load (0 = no limit)
	UserDataDir string        // Browser profile directory (empty = throwaway)
}

// Target returns the identity used to detect concurrent runs on the same page.
func (o OpenOptions) Target() string {
	if o.URL != "" {
		return o.URL
	}
	return "file://" + o.HTMLPath
}

// DriverName selects a driver for the options when none was requested explicitly.
func DriverName(requested string, opts OpenOptions) (string, error) {
	name := strings.ToLower(strings.TrimSpace(requested))
	if name != "" {
		return name, nil
	}
	switch {
	case opts.HTMLPath != "":
		return "html", nil
	case opts.URL != "":
		return "chromedp", nil
	default:
		return "", fmt.Errorf("no target: provide --url or --html")
	}
}
