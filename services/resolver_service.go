package services

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/WeMakeGood/mg-asset-download/domain"
	"github.com/WeMakeGood/mg-asset-download/models"
)

// Consumer-side interfaces
type AssetRecords interface {
	FindByOriginURL(url string) (*models.Asset, error)
	StorageKeyExists(key string) (bool, error)
	Create(asset *models.Asset) error
}

type AssetStore interface {
	UploadBytes(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}

type AssetFetcher interface {
	DownloadAsset(url string) ([]byte, string, error)
}

type EventPublisher interface {
	SendMessage(ctx context.Context, queueURL string, msg interface{}) error
}

type ResolverService struct {
	records        AssetRecords
	store          AssetStore
	fetcher        AssetFetcher
	events         EventPublisher
	bucket         string
	assetsBaseURL  string
	eventsQueueURL string
}

// Functional Options Pattern
type ResolverOption func(*ResolverService)

func WithAssetRecords(r AssetRecords) ResolverOption {
	return func(s *ResolverService) { s.records = r }
}

func WithAssetStore(st AssetStore) ResolverOption {
	return func(s *ResolverService) { s.store = st }
}

func WithAssetFetcher(f AssetFetcher) ResolverOption {
	return func(s *ResolverService) { s.fetcher = f }
}

func WithResolverEvents(p EventPublisher, queueURL string) ResolverOption {
	return func(s *ResolverService) {
		s.events = p
		s.eventsQueueURL = queueURL
	}
}

func WithAssetLocation(bucket, assetsBaseURL string) ResolverOption {
	return func(s *ResolverService) {
		s.bucket = bucket
		s.assetsBaseURL = strings.TrimSuffix(assetsBaseURL, "/")
	}
}

func NewResolverService(opts ...ResolverOption) *ResolverService {
	s := &ResolverService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve maps an external URL to a local asset URL, fetching and storing
// the bytes only if no asset with that origin URL exists yet. The origin
// URL is the dedup key: once an asset exists it is returned from lookup
// and the network is never touched again for that URL.
func (s *ResolverService) Resolve(ctx context.Context, originURL string) (string, error) {
	existing, err := s.records.FindByOriginURL(originURL)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.LocalURL, nil
	}

	data, responseType, err := s.fetcher.DownloadAsset(originURL)
	if err != nil {
		return "", err
	}

	key, err := s.uniqueStorageKey(originURL)
	if err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = responseType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.store.UploadBytes(ctx, s.bucket, key, data, contentType); err != nil {
		return "", err
	}

	asset := &models.Asset{
		OriginURL:   originURL,
		StorageKey:  key,
		LocalURL:    fmt.Sprintf("%s/%s", s.assetsBaseURL, key),
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}
	if err := s.records.Create(asset); err != nil {
		return "", err
	}

	// Rendition generation happens downstream and must never fail a resolve.
	if s.events != nil && s.eventsQueueURL != "" {
		msg := domain.AssetStoredMessage{
			Type:        domain.MsgTypeAssetStored,
			AssetID:     asset.ID,
			OriginURL:   originURL,
			StorageKey:  key,
			ContentType: contentType,
		}
		if err := s.events.SendMessage(ctx, s.eventsQueueURL, msg); err != nil {
			log.Printf("failed to publish asset_stored for %s: %v", originURL, err)
		}
	}

	return asset.LocalURL, nil
}

// uniqueStorageKey derives a storage key from the URL's path component and
// suffixes it until it is free in the asset namespace. A URL with no usable
// filename still gets a sane unique key.
func (s *ResolverService) uniqueStorageKey(originURL string) (string, error) {
	base := ""
	if u, err := url.Parse(originURL); err == nil {
		base = path.Base(u.Path)
	}
	if base == "" || base == "." || base == "/" {
		base = fmt.Sprintf("asset-%s", uuid.New().String())
	}

	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for i := 1; ; i++ {
		exists, err := s.records.StorageKeyExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		if i > 100 {
			// Pathological collision run, fall back to a random key.
			return fmt.Sprintf("%s-%s%s", stem, uuid.New().String(), ext), nil
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}
