package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/WeMakeGood/mg-asset-download/domain"
	"github.com/WeMakeGood/mg-asset-download/models"
)

type MockAssetRecords struct {
	mock.Mock
}

func (m *MockAssetRecords) FindByOriginURL(url string) (*models.Asset, error) {
	args := m.Called(url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Asset), args.Error(1)
}

func (m *MockAssetRecords) StorageKeyExists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssetRecords) Create(asset *models.Asset) error {
	args := m.Called(asset)
	return args.Error(0)
}

type MockAssetStore struct {
	mock.Mock
}

func (m *MockAssetStore) UploadBytes(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, bucket, key, data, contentType)
	return args.String(0), args.Error(1)
}

type MockAssetFetcher struct {
	mock.Mock
}

func (m *MockAssetFetcher) DownloadAsset(url string) ([]byte, string, error) {
	args := m.Called(url)
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) SendMessage(ctx context.Context, queueURL string, msg interface{}) error {
	args := m.Called(ctx, queueURL, msg)
	return args.Error(0)
}

func newResolver(records *MockAssetRecords, store *MockAssetStore, fetcher *MockAssetFetcher, events *MockEventPublisher) *ResolverService {
	opts := []ResolverOption{
		WithAssetRecords(records),
		WithAssetStore(store),
		WithAssetFetcher(fetcher),
		WithAssetLocation("local-assets", "https://www.example.org/assets"),
	}
	if events != nil {
		opts = append(opts, WithResolverEvents(events, "events-q"))
	}
	return NewResolverService(opts...)
}

func TestResolve_ExistingAssetSkipsNetwork(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	srv := newResolver(records, store, fetcher, nil)

	records.On("FindByOriginURL", "http://ext.example/a.jpg").Return(&models.Asset{
		OriginURL: "http://ext.example/a.jpg",
		LocalURL:  "https://www.example.org/assets/a.jpg",
	}, nil)

	localURL, err := srv.Resolve(context.Background(), "http://ext.example/a.jpg")
	assert.NoError(t, err)
	assert.Equal(t, "https://www.example.org/assets/a.jpg", localURL)

	fetcher.AssertNotCalled(t, "DownloadAsset", mock.Anything)
	store.AssertNotCalled(t, "UploadBytes", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	records.AssertExpectations(t)
}

func TestResolve_FetchStoreAndRecord(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	events := new(MockEventPublisher)
	srv := newResolver(records, store, fetcher, events)

	records.On("FindByOriginURL", "http://ext.example/a.jpg").Return(nil, nil)
	fetcher.On("DownloadAsset", "http://ext.example/a.jpg").Return([]byte("jpeg-bytes"), "image/jpeg", nil)
	records.On("StorageKeyExists", "a.jpg").Return(false, nil)
	store.On("UploadBytes", mock.Anything, "local-assets", "a.jpg", []byte("jpeg-bytes"), "image/jpeg").
		Return("s3://local-assets/a.jpg", nil)
	records.On("Create", mock.MatchedBy(func(a *models.Asset) bool {
		return a.OriginURL == "http://ext.example/a.jpg" &&
			a.StorageKey == "a.jpg" &&
			a.LocalURL == "https://www.example.org/assets/a.jpg" &&
			a.SizeBytes == int64(len("jpeg-bytes"))
	})).Return(nil)
	events.On("SendMessage", mock.Anything, "events-q", mock.MatchedBy(func(m domain.AssetStoredMessage) bool {
		return m.Type == domain.MsgTypeAssetStored && m.StorageKey == "a.jpg"
	})).Return(nil)

	localURL, err := srv.Resolve(context.Background(), "http://ext.example/a.jpg")
	assert.NoError(t, err)
	assert.Equal(t, "https://www.example.org/assets/a.jpg", localURL)

	records.AssertExpectations(t)
	store.AssertExpectations(t)
	fetcher.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestResolve_FetchFailureCreatesNoAsset(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	srv := newResolver(records, store, fetcher, nil)

	records.On("FindByOriginURL", "http://ext.example/down.jpg").Return(nil, nil)
	fetcher.On("DownloadAsset", "http://ext.example/down.jpg").
		Return([]byte(nil), "", domain.ErrFetchFailed)

	_, err := srv.Resolve(context.Background(), "http://ext.example/down.jpg")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))

	records.AssertNotCalled(t, "Create", mock.Anything)
	store.AssertNotCalled(t, "UploadBytes", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_StorageFailureCreatesNoAsset(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	srv := newResolver(records, store, fetcher, nil)

	records.On("FindByOriginURL", "http://ext.example/a.jpg").Return(nil, nil)
	fetcher.On("DownloadAsset", "http://ext.example/a.jpg").Return([]byte("jpeg-bytes"), "image/jpeg", nil)
	records.On("StorageKeyExists", "a.jpg").Return(false, nil)
	store.On("UploadBytes", mock.Anything, "local-assets", "a.jpg", []byte("jpeg-bytes"), "image/jpeg").
		Return("", errors.New("upload failed"))

	_, err := srv.Resolve(context.Background(), "http://ext.example/a.jpg")
	assert.Error(t, err)
	records.AssertNotCalled(t, "Create", mock.Anything)
}

func TestResolve_FilenameCollisionSuffixing(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	srv := newResolver(records, store, fetcher, nil)

	records.On("FindByOriginURL", "http://other.example/a.jpg").Return(nil, nil)
	fetcher.On("DownloadAsset", "http://other.example/a.jpg").Return([]byte("other"), "image/jpeg", nil)
	records.On("StorageKeyExists", "a.jpg").Return(true, nil)
	records.On("StorageKeyExists", "a-1.jpg").Return(true, nil)
	records.On("StorageKeyExists", "a-2.jpg").Return(false, nil)
	store.On("UploadBytes", mock.Anything, "local-assets", "a-2.jpg", []byte("other"), "image/jpeg").
		Return("s3://local-assets/a-2.jpg", nil)
	records.On("Create", mock.MatchedBy(func(a *models.Asset) bool {
		return a.StorageKey == "a-2.jpg"
	})).Return(nil)

	localURL, err := srv.Resolve(context.Background(), "http://other.example/a.jpg")
	assert.NoError(t, err)
	assert.Equal(t, "https://www.example.org/assets/a-2.jpg", localURL)
	records.AssertExpectations(t)
}

func TestResolve_EmptyFilenameGetsGeneratedKey(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	srv := newResolver(records, store, fetcher, nil)

	records.On("FindByOriginURL", "http://ext.example/").Return(nil, nil)
	fetcher.On("DownloadAsset", "http://ext.example/").Return([]byte("data"), "text/html", nil)
	records.On("StorageKeyExists", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "asset-")
	})).Return(false, nil)
	store.On("UploadBytes", mock.Anything, "local-assets", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "asset-")
	}), []byte("data"), "text/html").Return("s3://local-assets/key", nil)
	records.On("Create", mock.MatchedBy(func(a *models.Asset) bool {
		return strings.HasPrefix(a.StorageKey, "asset-")
	})).Return(nil)

	_, err := srv.Resolve(context.Background(), "http://ext.example/")
	assert.NoError(t, err)
	records.AssertExpectations(t)
}

func TestResolve_EventPublishFailureIsBestEffort(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	events := new(MockEventPublisher)
	srv := newResolver(records, store, fetcher, events)

	records.On("FindByOriginURL", "http://ext.example/b.zip").Return(nil, nil)
	fetcher.On("DownloadAsset", "http://ext.example/b.zip").Return([]byte("zip-bytes"), "application/zip", nil)
	records.On("StorageKeyExists", "b.zip").Return(false, nil)
	store.On("UploadBytes", mock.Anything, "local-assets", "b.zip", []byte("zip-bytes"), "application/zip").
		Return("s3://local-assets/b.zip", nil)
	records.On("Create", mock.Anything).Return(nil)
	events.On("SendMessage", mock.Anything, "events-q", mock.Anything).Return(errors.New("sqs down"))

	localURL, err := srv.Resolve(context.Background(), "http://ext.example/b.zip")
	assert.NoError(t, err)
	assert.Equal(t, "https://www.example.org/assets/b.zip", localURL)
}

func TestUniqueStorageKey_MimeFromFilename(t *testing.T) {
	records := new(MockAssetRecords)
	store := new(MockAssetStore)
	fetcher := new(MockAssetFetcher)
	srv := newResolver(records, store, fetcher, nil)

	// No Content-Type header on the response, type comes from the filename
	records.On("FindByOriginURL", "http://ext.example/report.pdf").Return(nil, nil)
	fetcher.On("DownloadAsset", "http://ext.example/report.pdf").Return([]byte("pdf-bytes"), "", nil)
	records.On("StorageKeyExists", "report.pdf").Return(false, nil)
	store.On("UploadBytes", mock.Anything, "local-assets", "report.pdf", []byte("pdf-bytes"), "application/pdf").
		Return("s3://local-assets/report.pdf", nil)
	records.On("Create", mock.Anything).Return(nil)

	_, err := srv.Resolve(context.Background(), "http://ext.example/report.pdf")
	assert.NoError(t, err)
	store.AssertExpectations(t)
}
