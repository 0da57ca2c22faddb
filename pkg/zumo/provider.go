package zumo

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Provider identifies an external identity service.
type Provider int

const (
	ProviderMicrosoftAccount Provider = iota + 1
	ProviderGoogle
	ProviderTwitter
	ProviderFacebook
)

// providerNames holds the wire names used in login/{provider} URLs.
var providerNames = map[Provider]string{
	ProviderMicrosoftAccount: "microsoftaccount",
	ProviderGoogle:           "google",
	ProviderTwitter:          "twitter",
	ProviderFacebook:         "facebook",
}

// providerAliases maps accepted spellings (case-folded) to providers.
var providerAliases = map[string]Provider{
	"microsoftaccount": ProviderMicrosoftAccount,
	"microsoft":        ProviderMicrosoftAccount,
	"live":             ProviderMicrosoftAccount,
	"google":           ProviderGoogle,
	"twitter":          ProviderTwitter,
	"facebook":         ProviderFacebook,
}

// String returns the lower-case wire name, e.g. "microsoftaccount".
func (p Provider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}

	return fmt.Sprintf("provider(%d)", int(p))
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	_, ok := providerNames[p]
	return ok
}

// ParseProvider resolves a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	key := cases.Fold().String(strings.TrimSpace(s))

	if p, ok := providerAliases[key]; ok {
		return p, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// LoginURL returns the browser login start URL for provider.
func (c *Client) LoginURL(provider Provider) string {
	return c.baseURL + "/" + loginPath + "/" + provider.String()
}

// loginDoneURL is the prefix marking the end of a browser login.
func (c *Client) loginDoneURL() string {
	return c.baseURL + "/" + loginDonePath
}
