package zumo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_String(t *testing.T) {
	assert.Equal(t, "microsoftaccount", ProviderMicrosoftAccount.String())
	assert.Equal(t, "google", ProviderGoogle.String())
	assert.Equal(t, "twitter", ProviderTwitter.String())
	assert.Equal(t, "facebook", ProviderFacebook.String())
	assert.Equal(t, "provider(0)", Provider(0).String())
	assert.False(t, Provider(0).Valid())
}

func TestParseProvider(t *testing.T) {
	tests := map[string]Provider{
		"google":           ProviderGoogle,
		"Google":           ProviderGoogle,
		" FACEBOOK ":       ProviderFacebook,
		"MicrosoftAccount": ProviderMicrosoftAccount,
		"microsoft":        ProviderMicrosoftAccount,
		"Live":             ProviderMicrosoftAccount,
		"twitter":          ProviderTwitter,
	}

	for in, want := range tests {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseProvider("myspace")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestLoginURL(t *testing.T) {
	c := newTestClient(t, "https://todo.azure-mobile.net/")

	assert.Equal(t, "https://todo.azure-mobile.net/login/facebook", c.LoginURL(ProviderFacebook))
	assert.Equal(t, "https://todo.azure-mobile.net/login/done", c.loginDoneURL())
}
