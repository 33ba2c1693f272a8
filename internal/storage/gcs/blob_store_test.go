package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler, prefix string) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "digest-bucket", Prefix: prefix})
	require.NoError(t, err)
	return store
}

func TestPutObjectUploads(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/digest-bucket/o")
		assert.Equal(t, "digests/digest_2025-06-10.json", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `{"count":0}`)
		fmt.Fprintln(w, `{"name": "digests/digest_2025-06-10.json", "bucket": "digest-bucket"}`)
	})

	store := newTestStore(t, handler, "/digests/")
	uri, err := store.PutObject(context.Background(), "digest_2025-06-10.json", "application/json", strings.NewReader(`{"count":0}`))
	require.NoError(t, err)
	assert.Equal(t, "gs://digest-bucket/digests/digest_2025-06-10.json", uri)
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store := newTestStore(t, handler, "")
	_, err := store.PutObject(context.Background(), "digest_2025-06-10.md", "text/markdown", strings.NewReader("# brief"))
	assert.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	_, err = New(client, Config{})
	assert.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "x.json", store.ObjectName("x.json"))
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	assert.Error(t, err)
}

func TestDeleteRemovesObject(t *testing.T) {
	var method, gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	store := newTestStore(t, handler, "digests")
	uri, err := store.Delete(context.Background(), "digest_2025-04-01.json")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, method)
	assert.Contains(t, gotPath, "/b/digest-bucket/o/digests")
	assert.Equal(t, "gs://digest-bucket/digests/digest_2025-04-01.json", uri)
}

func TestDeleteMissingObjectIsNoop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"error": {"code": 404, "message": "No such object"}}`)
	})

	store := newTestStore(t, handler, "")
	_, err := store.Delete(context.Background(), "digest_2025-04-01.md")
	assert.NoError(t, err)
}

func TestDeleteSurfacesServerErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t, handler, "")
	_, err := store.Delete(context.Background(), "digest_2025-04-01.md")
	require.ErrorContains(t, err, "delete digest_2025-04-01.md")
}
