// internal/scraper/blocklist.go
package scraper

// BlockedDomains are analytics and ad hosts never needed to read store data.
var BlockedDomains = []string{
	".facebook.net",
	"googlemanager.com",
	"stackadapt.com",
	"google-analytics.com",
	"clarity.ms",
	"googletagmanager.com",
	"youtube.com",
}

// BlockedExtensions are asset types skipped when rendering pages.
var BlockedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".woff", ".woff2"}

// BlockedURLPatterns renders the block list as Chrome URL patterns.
func BlockedURLPatterns() []string {
	patterns := make([]string, 0, len(BlockedDomains)+len(BlockedExtensions))
	for _, ext := range BlockedExtensions {
		patterns = append(patterns, "*"+ext+"*")
	}
	for _, domain := range BlockedDomains {
		patterns = append(patterns, "*"+domain+"*")
	}
	return patterns
}
