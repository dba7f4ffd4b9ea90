// Package flickr is a typed client for the Flickr REST and OAuth 1.0a APIs.
// Every response is normalized into the types in types.go; callers never see
// the `_content` wrappers or string-typed numbers of the raw wire format.
package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/mvexel/nostalgickr/internal/clients"
	"github.com/mvexel/nostalgickr/internal/logging"
)

const defaultRestURL = "https://api.flickr.com/services/rest"

// Credentials is a per-user OAuth token pair used to sign requests.
type Credentials struct {
	Token  string
	Secret string
}

// Config carries the construction parameters for a Client.
type Config struct {
	APIKey      string
	APISecret   string
	CallbackURL string

	// RestURL and OAuthEndpoint override the production endpoints in tests.
	RestURL       string
	OAuthEndpoint *oauth1.Endpoint

	Timeout time.Duration
	Logger  logging.Logger
}

// Client calls the upstream API. All outbound requests pass through a
// circuit breaker; when the breaker is open, calls fail fast with
// ErrUnavailable and no request leaves the process. Requests are never
// retried automatically.
type Client struct {
	apiKey     string
	restURL    string
	oauthCfg   *oauth1.Config
	httpClient *http.Client
	breaker    *clients.CircuitBreaker
	logger     logging.Logger
}

// NewClient creates a Flickr API client.
func NewClient(cfg Config) *Client {
	restURL := cfg.RestURL
	if restURL == "" {
		restURL = defaultRestURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	endpoint := cfg.OAuthEndpoint
	if endpoint == nil {
		endpoint = &oauth1.Endpoint{
			RequestTokenURL: "https://www.flickr.com/services/oauth/request_token",
			AuthorizeURL:    "https://www.flickr.com/services/oauth/authorize",
			AccessTokenURL:  "https://www.flickr.com/services/oauth/access_token",
		}
	}

	return &Client{
		apiKey:  cfg.APIKey,
		restURL: restURL,
		oauthCfg: &oauth1.Config{
			ConsumerKey:    cfg.APIKey,
			ConsumerSecret: cfg.APISecret,
			CallbackURL:    cfg.CallbackURL,
			Endpoint:       *endpoint,
		},
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: clients.DefaultTransport(),
		},
		breaker: clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
			Name:   "flickr",
			Logger: cfg.Logger,
		}),
		logger: cfg.Logger,
	}
}

// envelope is the outer frame of every REST response.
type envelope struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call performs one REST request and decodes the response into out. When
// creds is non-nil the request is OAuth-signed; otherwise it is api_key only.
func (c *Client) call(ctx context.Context, creds *Credentials, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("flickr: build request: %w", err)
	}

	httpClient := c.httpClient
	if creds != nil && creds.Token != "" {
		cctx := context.WithValue(ctx, oauth1.HTTPClient, c.httpClient)
		httpClient = c.oauthCfg.Client(cctx, oauth1.NewToken(creds.Token, creds.Secret))
		// Config.Client wraps only our transport; the overall deadline is
		// not inherited and must be carried over.
		httpClient.Timeout = c.httpClient.Timeout
	}

	var resp *http.Response
	callErr := c.breaker.Call(func() error {
		r, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if callErr != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, callErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if env.Stat != "ok" {
		// Upstream answered and told us the entity does not exist (or is
		// not visible to the caller). Either way the absence is confirmed.
		return fmt.Errorf("%w: %s (code %d)", ErrNotFound, env.Message, env.Code)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// FetchUserInfo returns the identity bound to the credentials.
func (c *Client) FetchUserInfo(ctx context.Context, creds Credentials) (*User, error) {
	params := url.Values{}
	params.Set("method", "flickr.test.login")

	var out struct {
		User *User `json:"user"`
	}
	if err := c.call(ctx, &creds, params, &out); err != nil {
		return nil, err
	}
	if out.User == nil || out.User.NSID == "" {
		return nil, fmt.Errorf("%w: no user in login response", ErrNotFound)
	}
	return out.User, nil
}

// FetchContacts lists the authenticated user's contacts. An empty contact
// list is a valid result, not an error.
func (c *Client) FetchContacts(ctx context.Context, creds Credentials) ([]Contact, error) {
	params := url.Values{}
	params.Set("method", "flickr.contacts.getList")

	var out struct {
		Contacts struct {
			Contact []Contact `json:"contact"`
		} `json:"contacts"`
	}
	if err := c.call(ctx, &creds, params, &out); err != nil {
		return nil, err
	}
	if out.Contacts.Contact == nil {
		return []Contact{}, nil
	}
	return out.Contacts.Contact, nil
}

// listExtras are the extra photo attributes requested on every listing call.
const listExtras = "description,date_upload,date_taken,owner_name,url_q,url_m"

// FetchOwnPhotos lists the authenticated user's own photos for one page,
// filtered to a single privacy tier.
func (c *Client) FetchOwnPhotos(ctx context.Context, creds Credentials, page, perPage int, privacy Privacy) (*PhotoPage, error) {
	params := url.Values{}
	params.Set("method", "flickr.photos.search")
	params.Set("user_id", "me")
	params.Set("extras", listExtras)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("privacy_filter", strconv.Itoa(int(privacy)))

	var out struct {
		Photos PhotoPage `json:"photos"`
	}
	if err := c.call(ctx, &creds, params, &out); err != nil {
		return nil, err
	}
	if out.Photos.Photos == nil {
		out.Photos.Photos = []Photo{}
	}
	return &out.Photos, nil
}

// FetchPhotosOfUser lists another user's photos visible to the caller, most
// recent first. An empty slice means the user has no visible photos.
func (c *Client) FetchPhotosOfUser(ctx context.Context, creds Credentials, nsid string, perPage int) ([]Photo, error) {
	params := url.Values{}
	params.Set("method", "flickr.people.getPhotos")
	params.Set("user_id", nsid)
	params.Set("extras", listExtras)
	params.Set("per_page", strconv.Itoa(perPage))

	var out struct {
		Photos PhotoPage `json:"photos"`
	}
	if err := c.call(ctx, &creds, params, &out); err != nil {
		return nil, err
	}
	if out.Photos.Photos == nil {
		return []Photo{}, nil
	}
	return out.Photos.Photos, nil
}

// FetchRecentPhotos lists recently uploaded public photos. Unsigned, used
// for the anonymous landing page.
func (c *Client) FetchRecentPhotos(ctx context.Context, perPage int) ([]Photo, error) {
	params := url.Values{}
	params.Set("method", "flickr.photos.getRecent")
	params.Set("extras", listExtras)
	params.Set("per_page", strconv.Itoa(perPage))

	var out struct {
		Photos PhotoPage `json:"photos"`
	}
	if err := c.call(ctx, nil, params, &out); err != nil {
		return nil, err
	}
	if out.Photos.Photos == nil {
		return []Photo{}, nil
	}
	return out.Photos.Photos, nil
}

// FetchPhotoDetails returns a photo's metadata. A nil creds performs an
// unsigned lookup, which only succeeds for public photos.
func (c *Client) FetchPhotoDetails(ctx context.Context, creds *Credentials, photoID string) (*PhotoDetails, error) {
	params := url.Values{}
	params.Set("method", "flickr.photos.getInfo")
	params.Set("photo_id", photoID)

	var out struct {
		Photo *PhotoDetails `json:"photo"`
	}
	if err := c.call(ctx, creds, params, &out); err != nil {
		return nil, err
	}
	if out.Photo == nil || out.Photo.ID == "" {
		return nil, fmt.Errorf("%w: photo %s", ErrNotFound, photoID)
	}
	return out.Photo, nil
}

// FetchPhotoSizes returns the available renditions of a photo. Sizes are
// public metadata, so the call is unsigned.
func (c *Client) FetchPhotoSizes(ctx context.Context, photoID string) ([]Size, error) {
	params := url.Values{}
	params.Set("method", "flickr.photos.getSizes")
	params.Set("photo_id", photoID)

	var out struct {
		Sizes struct {
			Size []Size `json:"size"`
		} `json:"sizes"`
	}
	if err := c.call(ctx, nil, params, &out); err != nil {
		return nil, err
	}
	if out.Sizes.Size == nil {
		return []Size{}, nil
	}
	return out.Sizes.Size, nil
}

// FetchGroups lists the groups a user belongs to.
func (c *Client) FetchGroups(ctx context.Context, creds Credentials, nsid string) ([]Group, error) {
	params := url.Values{}
	params.Set("method", "flickr.people.getGroups")
	params.Set("user_id", nsid)

	var out struct {
		Groups struct {
			Group []Group `json:"group"`
		} `json:"groups"`
	}
	if err := c.call(ctx, &creds, params, &out); err != nil {
		return nil, err
	}
	if out.Groups.Group == nil {
		return []Group{}, nil
	}
	return out.Groups.Group, nil
}
