package flickr

import "fmt"

// AuthURL starts the OAuth 1.0a handshake: it obtains a request token and
// builds the URL the browser is redirected to. The temporary token pair must
// be stashed in the session so the callback can complete the exchange.
func (c *Client) AuthURL() (authURL, requestToken, requestSecret string, err error) {
	requestToken, requestSecret, err = c.oauthCfg.RequestToken()
	if err != nil {
		return "", "", "", fmt.Errorf("%w: request token: %v", ErrUnavailable, err)
	}
	u, err := c.oauthCfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", "", "", fmt.Errorf("flickr: authorization url: %w", err)
	}
	q := u.Query()
	q.Set("perms", "read")
	u.RawQuery = q.Encode()
	return u.String(), requestToken, requestSecret, nil
}

// ExchangeToken completes the handshake, trading the request token and the
// verifier from the callback for long-lived access credentials.
func (c *Client) ExchangeToken(requestToken, requestSecret, verifier string) (Credentials, error) {
	token, secret, err := c.oauthCfg.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: access token: %v", ErrUnavailable, err)
	}
	return Credentials{Token: token, Secret: secret}, nil
}
