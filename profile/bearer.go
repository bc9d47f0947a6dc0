package profile

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the application-only token endpoint.
const DefaultTokenURL = "https://api.twitter.com/oauth2/token"

// BearerToken performs the client-credentials exchange: a POST to the token
// endpoint with HTTP Basic auth of consumer_key:consumer_secret, returning
// the access token for app-auth requests.
func (c Credentials) BearerToken(ctx context.Context, tokenURL string) (string, error) {
	if err := c.RequireAppAuth(); err != nil {
		return "", err
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	config := clientcredentials.Config{
		ClientID:     c.ConsumerKey,
		ClientSecret: c.ConsumerSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	token, err := config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("bearer token exchange: %w", err)
	}
	return token.AccessToken, nil
}
