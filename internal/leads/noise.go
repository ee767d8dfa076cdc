package leads

// noiseDomains are hosts that never yield usable company leads: social
// networks, marketplaces, job boards, directories, CDNs, and dev platforms.
var noiseDomains = map[string]struct{}{
	// social
	"facebook.com":  {},
	"instagram.com": {},
	"linkedin.com":  {},
	"twitter.com":   {},
	"x.com":         {},
	"youtube.com":   {},
	"tiktok.com":    {},
	"pinterest.com": {},
	"reddit.com":    {},
	"snapchat.com":  {},
	"threads.net":   {},
	// marketplaces and directories
	"amazon.com":        {},
	"amazon.nl":         {},
	"amazon.de":         {},
	"bol.com":           {},
	"marktplaats.nl":    {},
	"ebay.com":          {},
	"ebay.de":           {},
	"aliexpress.com":    {},
	"tripadvisor.com":   {},
	"booking.com":       {},
	"yelp.com":          {},
	"trustpilot.com":    {},
	"kvk.nl":            {},
	"telefoonboek.nl":   {},
	"detelefoongids.nl": {},
	"openingstijden.nl": {},
	"cylex.nl":          {},
	"gelbeseiten.de":    {},
	// job boards
	"indeed.com":               {},
	"indeed.nl":                {},
	"glassdoor.com":            {},
	"monsterboard.nl":          {},
	"nationalevacaturebank.nl": {},
	"stepstone.de":             {},
	"werkzoeken.nl":            {},
	"jobbird.com":              {},
	// reference and media
	"wikipedia.org":   {},
	"wikimedia.org":   {},
	"nu.nl":           {},
	"nos.nl":          {},
	"telegraaf.nl":    {},
	"ad.nl":           {},
	"medium.com":      {},
	"blogspot.com":    {},
	"wordpress.com":   {},
	"wix.com":         {},
	"squarespace.com": {},
	// search engines
	"google.com":     {},
	"google.nl":      {},
	"bing.com":       {},
	"duckduckgo.com": {},
	"yahoo.com":      {},
	// CDNs and infra
	"cloudflare.com": {},
	"cloudfront.net": {},
	"googleapis.com": {},
	"gstatic.com":    {},
	"akamaihd.net":   {},
	"fastly.net":     {},
	"windows.net":    {},
	"amazonaws.com":  {},
	// dev platforms
	"github.com":        {},
	"gitlab.com":        {},
	"stackoverflow.com": {},
	"npmjs.com":         {},
	"readthedocs.io":    {},
}
