package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

type memStore struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memStore) Put(_ context.Context, p string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
		m.types = make(map[string]string)
	}
	m.objects[p] = b
	m.types[p] = contentType
	return nil
}

func (m *memStore) Get(_ context.Context, p string) (io.ReadCloser, error) {
	b, ok := m.objects[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStore) Exists(_ context.Context, p string) (bool, error) {
	_, ok := m.objects[p]
	return ok, nil
}

func TestNormaliseEndpoint(t *testing.T) {
	check.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	check.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	check.Equal(t, "https://r2.example.com", normaliseEndpoint("https://r2.example.com", false))
}

func TestRecordSinkUpsertReplaces(t *testing.T) {
	store := &memStore{}
	sink := NewRecordSink(store, "/audit/")
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, sink.Upsert(ctx, domain.AuctionRecord{AuctionID: "9", Bidder: "0xa", Amount: "0.2", ObservedAt: at}))
	assert.NoError(t, sink.Upsert(ctx, domain.AuctionRecord{AuctionID: "9", Bidder: "0xb", Amount: "0.204", ObservedAt: at.Add(time.Minute)}))

	assert.Equal(t, 1, len(store.objects))
	check.Equal(t, "application/json", store.types["audit/9.json"])

	got, err := sink.Get(ctx, "9")
	assert.NoError(t, err)
	check.Equal(t, "0xb", got.Bidder)
	check.Equal(t, "0.204", got.Amount)
	check.True(t, got.ObservedAt.Equal(at.Add(time.Minute)))
}

func TestRecordSinkDefaultsAndValidation(t *testing.T) {
	sink := NewRecordSink(&memStore{}, "")
	check.Equal(t, "auctions/1.json", sink.key("1"))

	check.Error(t, sink.Upsert(context.Background(), domain.AuctionRecord{}))
	check.Error(t, sink.Upsert(context.Background(), domain.AuctionRecord{AuctionID: "../x"}))

	_, err := sink.Get(context.Background(), "404")
	check.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = sink.Get(context.Background(), "../x")
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestIsNotFound(t *testing.T) {
	check.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	check.True(t, isNotFound(&types.NotFound{}))
	check.False(t, isNotFound(errors.New("access denied")))
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	b, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Key: input.Key}, nil
}

func TestClientPutGoesThroughUploader(t *testing.T) {
	up := &fakeUploader{}
	c := &Client{uploader: up, bucket: "records"}

	assert.NoError(t, c.Put(context.Background(), "auctions/9.json", bytes.NewReader([]byte(`{"auction_id":"9"}`)), "application/json"))
	assert.NotNil(t, up.input)
	check.Equal(t, "records", aws.ToString(up.input.Bucket))
	check.Equal(t, "auctions/9.json", aws.ToString(up.input.Key))
	check.Equal(t, "application/json", aws.ToString(up.input.ContentType))
	check.Equal(t, `{"auction_id":"9"}`, string(up.body))

	up.err = errors.New("slow down")
	err := c.Put(context.Background(), "auctions/9.json", bytes.NewReader(nil), "application/json")
	check.True(t, err != nil)
}
