// Package gallery holds the orchestration core: for every operation it
// resolves cache-hit vs. upstream-fetch, fans out batch lookups
// concurrently, and writes results back to the cache per entity TTL policy.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mvexel/nostalgickr/internal/flickr"
	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/monitoring"
)

// FlickrAPI is the slice of the upstream client the service consumes.
// Declared here so tests can substitute a call-counting double.
type FlickrAPI interface {
	FetchUserInfo(ctx context.Context, creds flickr.Credentials) (*flickr.User, error)
	FetchContacts(ctx context.Context, creds flickr.Credentials) ([]flickr.Contact, error)
	FetchOwnPhotos(ctx context.Context, creds flickr.Credentials, page, perPage int, privacy flickr.Privacy) (*flickr.PhotoPage, error)
	FetchPhotosOfUser(ctx context.Context, creds flickr.Credentials, nsid string, perPage int) ([]flickr.Photo, error)
	FetchRecentPhotos(ctx context.Context, perPage int) ([]flickr.Photo, error)
	FetchPhotoDetails(ctx context.Context, creds *flickr.Credentials, photoID string) (*flickr.PhotoDetails, error)
	FetchPhotoSizes(ctx context.Context, photoID string) ([]flickr.Size, error)
	FetchGroups(ctx context.Context, creds flickr.Credentials, nsid string) ([]flickr.Group, error)
}

// TTLConfig is the per-entity cache expiry policy.
type TTLConfig struct {
	PhotoDetails time.Duration
	PhotoSizes   time.Duration
	FriendPhoto  time.Duration
	Negative     time.Duration
}

// Metrics holds the orchestration counters. A nil *Metrics disables
// collection, which keeps tests free of a global registry.
type Metrics struct {
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	UpstreamErrors *prometheus.CounterVec
}

// NewMetrics registers the orchestration counters with the collector.
func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		CacheHits:      mc.NewCounter("cache_hits_total", "Cache hits by entity type", []string{"entity"}),
		CacheMisses:    mc.NewCounter("cache_misses_total", "Cache misses by entity type", []string{"entity"}),
		UpstreamErrors: mc.NewCounter("upstream_errors_total", "Upstream call failures by entity type", []string{"entity"}),
	}
}

func (m *Metrics) hit(entity string) {
	if m != nil && m.CacheHits != nil {
		m.CacheHits.WithLabelValues(entity).Inc()
	}
}

func (m *Metrics) miss(entity string) {
	if m != nil && m.CacheMisses != nil {
		m.CacheMisses.WithLabelValues(entity).Inc()
	}
}

func (m *Metrics) upstreamError(entity string) {
	if m != nil && m.UpstreamErrors != nil {
		m.UpstreamErrors.WithLabelValues(entity).Inc()
	}
}

// Service orchestrates cache and upstream access for all gallery operations.
type Service struct {
	api     FlickrAPI
	cache   *Cache
	ttl     TTLConfig
	metrics *Metrics
	logger  logging.Logger
}

// NewService creates the orchestrator. metrics may be nil.
func NewService(api FlickrAPI, cache *Cache, ttl TTLConfig, metrics *Metrics, logger logging.Logger) *Service {
	return &Service{api: api, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

// writePositive caches a fetched result. The data is already in hand, so a
// failed write is logged and the request proceeds.
func (s *Service) writePositive(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, v, ttl); err != nil {
		s.logger.WithFields(logging.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
}

func (s *Service) writeNegative(ctx context.Context, key string) {
	if err := s.cache.SetNegative(ctx, key, s.ttl.Negative); err != nil {
		s.logger.WithFields(logging.Fields{"key": key, "error": err.Error()}).Warn("Negative cache write failed")
	}
}

// PhotoDetails returns a photo's metadata via cache-or-fetch. A cache hit
// never refreshes the TTL. creds may be nil for anonymous lookups.
func (s *Service) PhotoDetails(ctx context.Context, creds *flickr.Credentials, photoID string) (*flickr.PhotoDetails, error) {
	key := DetailsKey(photoID)
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry.Found {
		s.metrics.hit("photo_details")
		if entry.Negative {
			return nil, flickr.ErrNotFound
		}
		var details flickr.PhotoDetails
		if err := json.Unmarshal(entry.Raw, &details); err == nil {
			return &details, nil
		}
		// corrupt entry falls through to a fresh fetch
	}
	s.metrics.miss("photo_details")

	details, err := s.api.FetchPhotoDetails(ctx, creds, photoID)
	if errors.Is(err, flickr.ErrNotFound) {
		s.writeNegative(ctx, key)
		return nil, err
	}
	if err != nil {
		s.metrics.upstreamError("photo_details")
		return nil, err
	}
	s.writePositive(ctx, key, details, s.ttl.PhotoDetails)
	return details, nil
}

// PhotoSizes returns the available renditions of a photo via cache-or-fetch.
// An empty size list counts as a negative result.
func (s *Service) PhotoSizes(ctx context.Context, photoID string) ([]flickr.Size, error) {
	key := SizesKey(photoID)
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry.Found {
		s.metrics.hit("photo_sizes")
		if entry.Negative {
			return nil, flickr.ErrNotFound
		}
		var sizes []flickr.Size
		if err := json.Unmarshal(entry.Raw, &sizes); err == nil {
			return sizes, nil
		}
	}
	s.metrics.miss("photo_sizes")

	sizes, err := s.api.FetchPhotoSizes(ctx, photoID)
	if errors.Is(err, flickr.ErrNotFound) || (err == nil && len(sizes) == 0) {
		s.writeNegative(ctx, key)
		return nil, flickr.ErrNotFound
	}
	if err != nil {
		s.metrics.upstreamError("photo_sizes")
		return nil, err
	}
	s.writePositive(ctx, key, sizes, s.ttl.PhotoSizes)
	return sizes, nil
}

// sizePreference orders rendition labels from most to least desirable.
var sizePreference = []string{"Original", "Large", "Medium 800", "Medium 640", "Medium", "Small"}

// SelectImageURL picks the display rendition: the first preferred label
// present, else the widest rendition on offer. Upstream does not guarantee
// list ordering, so position is never used as a proxy for size.
func SelectImageURL(sizes []flickr.Size) string {
	for _, label := range sizePreference {
		for _, size := range sizes {
			if size.Label == label {
				return size.Source
			}
		}
	}
	best := ""
	bestWidth := -1
	for _, size := range sizes {
		if size.Width.Int() > bestWidth {
			bestWidth = size.Width.Int()
			best = size.Source
		}
	}
	return best
}

// FriendPhotoResult is one contact's entry in a batch lookup. Exactly one
// of Photo, NotFound or Error is set.
type FriendPhotoResult struct {
	Photo    *flickr.Photo `json:"photo,omitempty"`
	NotFound bool          `json:"not_found,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// FriendLatestPhotos resolves the most recent photo for each contact: one
// multi-key cache read, then one concurrent upstream call per miss, with
// independent per-key cache writes. The output carries exactly one entry per
// distinct input identifier; one contact's failure never fails the others.
func (s *Service) FriendLatestPhotos(ctx context.Context, creds flickr.Credentials, nsids []string) (map[string]FriendPhotoResult, error) {
	unique := make([]string, 0, len(nsids))
	seen := make(map[string]struct{}, len(nsids))
	for _, id := range nsids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return map[string]FriendPhotoResult{}, nil
	}

	keys := make([]string, len(unique))
	for i, id := range unique {
		keys[i] = FriendKey(id)
	}
	entries, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	results := make(map[string]FriendPhotoResult, len(unique))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, id := range unique {
		entry := entries[i]
		if entry.Found {
			s.metrics.hit("friend_latest_photo")
			if entry.Negative {
				setResult(&mu, results, id, FriendPhotoResult{NotFound: true})
				continue
			}
			var photo flickr.Photo
			if err := json.Unmarshal(entry.Raw, &photo); err == nil {
				setResult(&mu, results, id, FriendPhotoResult{Photo: &photo})
				continue
			}
		}
		s.metrics.miss("friend_latest_photo")

		id := id
		g.Go(func() error {
			setResult(&mu, results, id, s.fetchFriendPhoto(gctx, creds, id))
			return nil
		})
	}

	// goroutines never return errors; Wait is a pure join
	_ = g.Wait()
	return results, nil
}

func (s *Service) fetchFriendPhoto(ctx context.Context, creds flickr.Credentials, nsid string) FriendPhotoResult {
	photos, err := s.api.FetchPhotosOfUser(ctx, creds, nsid, 1)
	switch {
	case err == nil && len(photos) > 0:
		photo := photos[0]
		s.writePositive(ctx, FriendKey(nsid), photo, s.ttl.FriendPhoto)
		return FriendPhotoResult{Photo: &photo}
	case err == nil || errors.Is(err, flickr.ErrNotFound):
		s.writeNegative(ctx, FriendKey(nsid))
		return FriendPhotoResult{NotFound: true}
	default:
		s.metrics.upstreamError("friend_latest_photo")
		s.logger.WithFields(logging.Fields{"nsid": nsid, "error": err.Error()}).Warn("Friend photo fetch failed")
		return FriendPhotoResult{Error: "upstream unavailable"}
	}
}

// setResult guards the output map: cache hits land while miss goroutines for
// earlier identifiers may already be writing.
func setResult[T any](mu *sync.Mutex, results map[string]T, id string, res T) {
	mu.Lock()
	results[id] = res
	mu.Unlock()
}

// ErrAuthRequired is returned when an operation needs credentials the
// caller's session does not carry. The gate never reaches upstream.
var ErrAuthRequired = errors.New("not authenticated")

// FriendLatestPhoto serves the single-contact legacy endpoint. The cache is
// consulted before the auth gate, so cached entries stay readable without
// credentials; only a miss requires an authenticated fetch.
func (s *Service) FriendLatestPhoto(ctx context.Context, creds *flickr.Credentials, nsid string) (FriendPhotoResult, error) {
	entry, err := s.cache.Get(ctx, FriendKey(nsid))
	if err != nil {
		return FriendPhotoResult{}, err
	}
	if entry.Found {
		s.metrics.hit("friend_latest_photo")
		if entry.Negative {
			return FriendPhotoResult{NotFound: true}, nil
		}
		var photo flickr.Photo
		if err := json.Unmarshal(entry.Raw, &photo); err == nil {
			return FriendPhotoResult{Photo: &photo}, nil
		}
	}
	if creds == nil {
		return FriendPhotoResult{}, ErrAuthRequired
	}
	s.metrics.miss("friend_latest_photo")
	return s.fetchFriendPhoto(ctx, *creds, nsid), nil
}

// PhotoSizesResult is one photo's entry in a batch size lookup. The shape
// mirrors FriendPhotoResult so both batch endpoints share one convention.
type PhotoSizesResult struct {
	Sizes    []flickr.Size `json:"sizes,omitempty"`
	NotFound bool          `json:"not_found,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// BatchPhotoSizes resolves size listings for several photos with the same
// fan-out shape as FriendLatestPhotos.
func (s *Service) BatchPhotoSizes(ctx context.Context, photoIDs []string) (map[string]PhotoSizesResult, error) {
	unique := make([]string, 0, len(photoIDs))
	seen := make(map[string]struct{}, len(photoIDs))
	for _, id := range photoIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return map[string]PhotoSizesResult{}, nil
	}

	keys := make([]string, len(unique))
	for i, id := range unique {
		keys[i] = SizesKey(id)
	}
	entries, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	results := make(map[string]PhotoSizesResult, len(unique))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, id := range unique {
		entry := entries[i]
		if entry.Found {
			s.metrics.hit("photo_sizes")
			if entry.Negative {
				setResult(&mu, results, id, PhotoSizesResult{NotFound: true})
				continue
			}
			var sizes []flickr.Size
			if err := json.Unmarshal(entry.Raw, &sizes); err == nil {
				setResult(&mu, results, id, PhotoSizesResult{Sizes: sizes})
				continue
			}
		}
		s.metrics.miss("photo_sizes")

		id := id
		g.Go(func() error {
			setResult(&mu, results, id, s.fetchSizes(gctx, id))
			return nil
		})
	}

	_ = g.Wait()
	return results, nil
}

func (s *Service) fetchSizes(ctx context.Context, photoID string) PhotoSizesResult {
	sizes, err := s.api.FetchPhotoSizes(ctx, photoID)
	switch {
	case err == nil && len(sizes) > 0:
		s.writePositive(ctx, SizesKey(photoID), sizes, s.ttl.PhotoSizes)
		return PhotoSizesResult{Sizes: sizes}
	case err == nil || errors.Is(err, flickr.ErrNotFound):
		s.writeNegative(ctx, SizesKey(photoID))
		return PhotoSizesResult{NotFound: true}
	default:
		s.metrics.upstreamError("photo_sizes")
		s.logger.WithFields(logging.Fields{"photo_id": photoID, "error": err.Error()}).Warn("Photo sizes fetch failed")
		return PhotoSizesResult{Error: "upstream unavailable"}
	}
}

// OwnPhotos lists the authenticated user's photos. Listings are paginated
// and privacy-filtered, so they are never cached.
func (s *Service) OwnPhotos(ctx context.Context, creds flickr.Credentials, page, perPage int, privacy flickr.Privacy) (*flickr.PhotoPage, error) {
	return s.api.FetchOwnPhotos(ctx, creds, page, perPage, privacy)
}

// RecentPhotos lists recently uploaded public photos for the anonymous
// landing page. The feed changes constantly, so it is not cached.
func (s *Service) RecentPhotos(ctx context.Context, perPage int) ([]flickr.Photo, error) {
	return s.api.FetchRecentPhotos(ctx, perPage)
}

// Contacts lists the authenticated user's contacts.
func (s *Service) Contacts(ctx context.Context, creds flickr.Credentials) ([]flickr.Contact, error) {
	return s.api.FetchContacts(ctx, creds)
}

// Groups lists the groups a user belongs to.
func (s *Service) Groups(ctx context.Context, creds flickr.Credentials, nsid string) ([]flickr.Group, error) {
	return s.api.FetchGroups(ctx, creds, nsid)
}

// UserInfo returns the identity bound to the credentials.
func (s *Service) UserInfo(ctx context.Context, creds flickr.Credentials) (*flickr.User, error) {
	return s.api.FetchUserInfo(ctx, creds)
}
