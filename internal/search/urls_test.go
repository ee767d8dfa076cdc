package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRedirect(t *testing.T) {
	t.Parallel()

	decoded := decodeRedirect("https://duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.acme.nl%2F&rut=abc")
	require.Equal(t, "https://www.acme.nl/", decoded)

	passthrough := decodeRedirect("https://www.acme.nl/contact")
	require.Equal(t, "https://www.acme.nl/contact", passthrough)

	relative := decodeRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.be")
	require.Equal(t, "https://acme.be", relative)
}

func TestNormalizeResultsFilters(t *testing.T) {
	t.Parallel()

	hrefs := []string{
		"https://www.acme.nl/",                     // ok
		"https://acme.nl/over-ons",                 // duplicate domain
		"https://duckduckgo.com/settings",          // engine host
		"https://www.facebook.com/acme",            // noise
		"ftp://files.acme.de",                      // wrong scheme
		"https://acme.fr",                          // TLD not accepted
		"https://duckduckgo.com/l/?uddg=https%3A%2F%2Fbesloten.be%2F", // redirect unwrap
		"https://beta.acme.de/",                    // ok
	}
	urls := normalizeResults(hrefs, 10)
	require.Equal(t, []string{
		"https://www.acme.nl/",
		"https://besloten.be/",
		"https://beta.acme.de/",
	}, urls)
}

func TestNormalizeResultsCap(t *testing.T) {
	t.Parallel()

	hrefs := []string{
		"https://a.nl", "https://b.nl", "https://c.nl", "https://d.nl",
	}
	require.Len(t, normalizeResults(hrefs, 2), 2)
}

func TestIsBlockedPage(t *testing.T) {
	t.Parallel()

	require.True(t, isBlockedPage("Bot check", ""))
	require.True(t, isBlockedPage("", "We detected unusual traffic from your network"))
	require.True(t, isBlockedPage("Access Denied", "please complete the CAPTCHA"))
	require.False(t, isBlockedPage("acme at DuckDuckGo", "results for acme"))
}
