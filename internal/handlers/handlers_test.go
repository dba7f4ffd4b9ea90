package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvexel/nostalgickr/internal/flickr"
	"github.com/mvexel/nostalgickr/internal/gallery"
	"github.com/mvexel/nostalgickr/internal/handlers"
	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/middleware"
	"github.com/mvexel/nostalgickr/internal/session"
)

// fakeAPI is a call-counting upstream double.
type fakeAPI struct {
	mu sync.Mutex

	recent     []flickr.Photo
	details    map[string]*flickr.PhotoDetails
	sizes      map[string][]flickr.Size
	userPhotos map[string][]flickr.Photo
	contacts   []flickr.Contact
	groups     []flickr.Group

	recentCalls     int
	ownPhotosCalls  int
	detailsCalls    map[string]int
	userPhotosCalls map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		details:         map[string]*flickr.PhotoDetails{},
		sizes:           map[string][]flickr.Size{},
		userPhotos:      map[string][]flickr.Photo{},
		detailsCalls:    map[string]int{},
		userPhotosCalls: map[string]int{},
	}
}

func (f *fakeAPI) FetchUserInfo(ctx context.Context, creds flickr.Credentials) (*flickr.User, error) {
	return &flickr.User{NSID: "11111111@N00", Username: "tester"}, nil
}

func (f *fakeAPI) FetchContacts(ctx context.Context, creds flickr.Credentials) ([]flickr.Contact, error) {
	return f.contacts, nil
}

func (f *fakeAPI) FetchOwnPhotos(ctx context.Context, creds flickr.Credentials, page, perPage int, privacy flickr.Privacy) (*flickr.PhotoPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownPhotosCalls++
	return &flickr.PhotoPage{Photos: []flickr.Photo{{ID: "own1", Title: "my photo"}}, Page: 1, Pages: 1}, nil
}

func (f *fakeAPI) FetchPhotosOfUser(ctx context.Context, creds flickr.Credentials, nsid string, perPage int) ([]flickr.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userPhotosCalls[nsid]++
	return f.userPhotos[nsid], nil
}

func (f *fakeAPI) FetchRecentPhotos(ctx context.Context, perPage int) ([]flickr.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.recent, nil
}

func (f *fakeAPI) FetchPhotoDetails(ctx context.Context, creds *flickr.Credentials, photoID string) (*flickr.PhotoDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsCalls[photoID]++
	if d, ok := f.details[photoID]; ok {
		return d, nil
	}
	return nil, flickr.ErrNotFound
}

func (f *fakeAPI) FetchPhotoSizes(ctx context.Context, photoID string) ([]flickr.Size, error) {
	return f.sizes[photoID], nil
}

func (f *fakeAPI) FetchGroups(ctx context.Context, creds flickr.Credentials, nsid string) ([]flickr.Group, error) {
	return f.groups, nil
}

// fakeOAuth stands in for the provider-side handshake.
type fakeOAuth struct{}

func (fakeOAuth) AuthURL() (string, string, string, error) {
	return "https://provider.example/authorize?oauth_token=req-tok", "req-tok", "req-sec", nil
}

func (fakeOAuth) ExchangeToken(requestToken, requestSecret, verifier string) (flickr.Credentials, error) {
	return flickr.Credentials{Token: "acc-tok", Secret: "acc-sec"}, nil
}

type testApp struct {
	router   *gin.Engine
	api      *fakeAPI
	sessions *session.Manager
	cache    *gallery.Cache
	redis    *miniredis.Miniredis
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := logging.NewLogger()
	sessions := session.NewManager(client, 24*time.Hour)
	cache := gallery.NewCache(client)
	api := newFakeAPI()
	svc := gallery.NewService(api, cache, gallery.TTLConfig{
		PhotoDetails: 48 * time.Hour,
		PhotoSizes:   7 * 24 * time.Hour,
		FriendPhoto:  2 * time.Hour,
		Negative:     2 * time.Minute,
	}, nil, logger)
	h := handlers.New(svc, sessions, fakeOAuth{}, logger)

	r := gin.New()
	r.LoadHTMLGlob("../../web/templates/*.html")

	sess := middleware.SessionMiddleware(sessions, 86400, logger)
	g := r.Group("/", sess)
	g.GET("/", h.Index)
	g.GET("/login", h.Login)
	g.GET("/callback", h.Callback)
	g.GET("/logout", h.Logout)
	g.GET("/photo/:id", h.PhotoPage)
	g.GET("/photo_details/:id", h.PhotoDetails)
	g.GET("/friend_latest_photo/:nsid", h.FriendLatestPhoto)
	g.GET("/friends", middleware.RequireAuthPage(), h.Friends)
	g.GET("/groups", middleware.RequireAuthPage(), h.Groups)
	g.POST("/friend_latest_photos", middleware.RequireAuthAPI(), h.FriendLatestPhotos)
	g.POST("/batch_photo_sizes", middleware.RequireAuthAPI(), h.BatchPhotoSizes)
	r.NoRoute(sess, h.NotFound)

	return &testApp{router: r, api: api, sessions: sessions, cache: cache, redis: mr}
}

func (a *testApp) do(t *testing.T, method, path, cookie string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(context.Background(), method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) authenticate(t *testing.T, sid string) {
	t.Helper()
	_, err := a.sessions.Mutate(context.Background(), sid, func(r *session.Record) {
		r.OAuthToken = "tok"
		r.OAuthTokenSecret = "sec"
		r.UserNSID = "11111111@N00"
		r.UserName = "tester"
	})
	require.NoError(t, err)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	return nil
}

func TestAnonymousIndexListsPublicPhotosAndSetsCookie(t *testing.T) {
	app := newTestApp(t)
	app.api.recent = []flickr.Photo{{ID: "r1", Title: "recent shot", ThumbnailURL: "https://img/r1_q.jpg"}}

	w := app.do(t, "GET", "/", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "recent shot")
	assert.Contains(t, w.Body.String(), "log in with Flickr")

	cookie := sessionCookie(w)
	require.NotNil(t, cookie, "anonymous response must set a session cookie")
	assert.True(t, cookie.HttpOnly)
	assert.GreaterOrEqual(t, len(cookie.Value), 22)
	assert.Equal(t, 1, app.api.recentCalls)
	assert.Equal(t, 0, app.api.ownPhotosCalls)
}

func TestAuthenticatedIndexShowsOwnPhotos(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")

	w := app.do(t, "GET", "/?privacy=friends", "sid", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "my photo")
	assert.Contains(t, w.Body.String(), "tester")
	assert.Equal(t, 1, app.api.ownPhotosCalls)
	assert.Equal(t, 0, app.api.recentCalls)
}

func TestFriendBatchFetchesOnlyMisses(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")
	ctx := context.Background()

	// A is already cached; B must be fetched.
	require.NoError(t, app.cache.Set(ctx, gallery.FriendKey("A"), flickr.Photo{ID: "a1", Title: "cached"}, time.Hour))
	app.api.userPhotos["B"] = []flickr.Photo{{ID: "b1", Title: "fresh"}}

	w := app.do(t, "POST", "/friend_latest_photos", "sid", `["A","B"]`)

	require.Equal(t, http.StatusOK, w.Code)
	var results map[string]gallery.FriendPhotoResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	require.NotNil(t, results["A"].Photo)
	require.NotNil(t, results["B"].Photo)
	assert.Equal(t, "cached", results["A"].Photo.Title)
	assert.Equal(t, "fresh", results["B"].Photo.Title)

	assert.Equal(t, 0, app.api.userPhotosCalls["A"], "cache hit must not reach upstream")
	assert.Equal(t, 1, app.api.userPhotosCalls["B"])
}

func TestLogoutThenIndexIsAnonymous(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")

	w := app.do(t, "GET", "/logout", "sid", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	// Reusing the same cookie value must present as unauthenticated.
	w = app.do(t, "GET", "/", "sid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "log in with Flickr")
	assert.Equal(t, 0, app.api.ownPhotosCalls)
}

func TestPhotoDetailsSecondCallSkipsUpstream(t *testing.T) {
	app := newTestApp(t)
	app.api.details["123"] = &flickr.PhotoDetails{
		ID:          "123",
		Title:       "Sunset",
		Description: "Over the bay",
		Views:       "1024",
		Comments:    "7",
		Tags:        flickr.TagList{"sunset", "bay"},
	}

	w := app.do(t, "GET", "/photo_details/123", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Tags        []string `json:"tags"`
		Views       string   `json:"views"`
		Comments    string   `json:"comments"`
		Description string   `json:"description"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, []string{"sunset", "bay"}, payload.Tags)
	assert.Equal(t, "1024", payload.Views)
	assert.Equal(t, "7", payload.Comments)
	assert.Equal(t, "Over the bay", payload.Description)

	w = app.do(t, "GET", "/photo_details/123", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, app.api.detailsCalls["123"], "second call must be served from cache")
}

func TestPhotoDetailsUnknownPhotoIs404(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "GET", "/photo_details/999", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No photo found")
}

func TestPhotoPageRendersPreferredSize(t *testing.T) {
	app := newTestApp(t)
	app.api.details["123"] = &flickr.PhotoDetails{ID: "123", Title: "Sunset"}
	app.api.sizes["123"] = []flickr.Size{
		{Label: "Small", Width: 240, Source: "https://img/123_s.jpg"},
		{Label: "Original", Width: 4000, Source: "https://img/123_o.jpg"},
	}

	w := app.do(t, "GET", "/photo/123", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://img/123_o.jpg")
	assert.NotContains(t, w.Body.String(), "https://img/123_s.jpg")
}

func TestLoginRedirectsToProviderAndStoresRequestToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "GET", "/login", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://provider.example/authorize?oauth_token=req-tok", w.Header().Get("Location"))

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	rec, err := app.sessions.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "req-tok", rec.OAuthToken)
	assert.Equal(t, "req-sec", rec.OAuthTokenSecret)
}

func TestCallbackExchangesTokenAndStoresIdentity(t *testing.T) {
	app := newTestApp(t)

	// Session holds the request token pair from /login.
	_, err := app.sessions.Mutate(context.Background(), "sid", func(r *session.Record) {
		r.OAuthToken = "req-tok"
		r.OAuthTokenSecret = "req-sec"
	})
	require.NoError(t, err)

	w := app.do(t, "GET", "/callback?oauth_token=req-tok&oauth_verifier=v123", "sid", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	rec, err := app.sessions.Get(context.Background(), "sid")
	require.NoError(t, err)
	assert.True(t, rec.Authenticated())
	assert.Equal(t, "acc-tok", rec.OAuthToken)
	assert.Equal(t, "11111111@N00", rec.UserNSID)
	assert.Equal(t, "tester", rec.UserName)
}

func TestCallbackWithoutVerifierRedirectsHome(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "GET", "/callback", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestFriendLatestPhotoLegacyServesCacheBeforeAuth(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	// Anonymous caller on a miss is gated.
	w := app.do(t, "GET", "/friend_latest_photo/A", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A cached entry answers without credentials.
	require.NoError(t, app.cache.Set(ctx, gallery.FriendKey("A"), flickr.Photo{ID: "a1", Title: "cached"}, time.Hour))
	w = app.do(t, "GET", "/friend_latest_photo/A", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a1")
}

func TestFriendLatestPhotoNoPhotoIs404(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")

	w := app.do(t, "GET", "/friend_latest_photo/A", "sid", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No photo found")
}

func TestBatchEndpointsRequireAuth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "POST", "/friend_latest_photos", "", `["A"]`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, "POST", "/batch_photo_sizes", "", `["1"]`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBatchPhotoSizesReturnsEntryPerInput(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")
	app.api.sizes["1"] = []flickr.Size{{Label: "Original", Width: 4000, Source: "https://img/1_o.jpg"}}

	w := app.do(t, "POST", "/batch_photo_sizes", "sid", `["1","2"]`)
	require.Equal(t, http.StatusOK, w.Code)

	var results map[string]gallery.PhotoSizesResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Len(t, results["1"].Sizes, 1)
	assert.True(t, results["2"].NotFound)
}

func TestBatchRejectsMalformedBody(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")

	w := app.do(t, "POST", "/friend_latest_photos", "sid", `{"not":"an array"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFriendsPageRedirectsAnonymous(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "GET", "/friends", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestFriendsPageListsContacts(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")
	app.api.contacts = []flickr.Contact{{NSID: "A", Username: "alice", RealName: "Alice"}}

	w := app.do(t, "GET", "/friends", "sid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alice")
	assert.Contains(t, w.Body.String(), `data-nsid="A"`)
}

func TestGroupsPageListsGroups(t *testing.T) {
	app := newTestApp(t)
	app.authenticate(t, "sid")
	app.api.groups = []flickr.Group{{NSID: "g1", Name: "Analog Cameras", Members: 120, PoolCount: 4000}}

	w := app.do(t, "GET", "/groups", "sid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Analog Cameras")
}

func TestUnknownRouteRenders404Page(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "GET", "/no/such/page", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "wandered off")
}
