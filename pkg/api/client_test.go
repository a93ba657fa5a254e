package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mishal9/glasscloset/pkg/auth"
	"github.com/mishal9/glasscloset/pkg/netmon"
)

func newTestClient(t *testing.T, handler http.Handler, token string, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := auth.NewMemoryStore()
	if token != "" {
		require.NoError(t, tokens.Set(token))
	}

	client, err := NewClient(server.URL, tokens, opts...)
	require.NoError(t, err)
	return client, server
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("://not-a-url", auth.NewMemoryStore())
	require.ErrorIs(t, err, ErrInvalidURL)

	_, err = NewClient("relative/path", auth.NewMemoryStore())
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestAnalyzeImageWithoutTokenMakesNoRequest(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), "")

	_, err := client.AnalyzeImage(context.Background(), []byte{0xFF, 0xD8})
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	require.Zero(t, calls.Load(), "an unauthenticated request must never be sent")

	_, err = client.FetchItems(context.Background())
	require.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = client.DeleteItem(context.Background(), "x")
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	require.Zero(t, calls.Load())
}

func TestAnalyzeImageWithoutNetworkMakesNoRequest(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), "token", WithMonitor(netmon.Static(false)))

	_, err := client.AnalyzeImage(context.Background(), []byte{0xFF, 0xD8})
	require.ErrorIs(t, err, ErrNoNetworkConnection)
	require.Zero(t, calls.Load(), "a doomed request must be rejected up front")
}

func TestAnalyzeImageMultipartShape(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0x01, 0x02}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/analyze-image", r.URL.Path)
		require.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		contentType := r.Header.Get("Content-Type")
		require.Contains(t, contentType, "multipart/form-data")
		require.Contains(t, contentType, "boundary=Boundary-", "boundary must carry the per-request token")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["file"]
		require.Len(t, files, 1, "exactly one part named file")
		require.Equal(t, "image.jpg", files[0].Filename)
		require.Equal(t, "image/jpeg", files[0].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		got, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, payload, got)

		json.NewEncoder(w).Encode(map[string]any{
			"analysis": "a navy hoodie",
			"attributes": map[string]any{
				"main_colors":  "navy blue",
				"garment_type": "hoodie",
				"material":     "null",
			},
			"clothing_item_id": "item-42",
			"image_url":        "https://cdn.example.com/item-42.jpg",
		})
	}), "token-123")

	attrs, err := client.AnalyzeImage(context.Background(), payload)
	require.NoError(t, err)

	require.Equal(t, []string{"navy blue"}, attrs.MainColors)
	require.Equal(t, "hoodie", attrs.GarmentType)
	require.Equal(t, "", attrs.Material, `the literal "null" is normalized away`)
	require.Equal(t, "item-42", attrs.ID)
	require.Equal(t, "https://cdn.example.com/item-42.jpg", attrs.ImageURL)
}

func TestAnalyzeImageBoundaryUniquePerRequest(t *testing.T) {
	var boundaries []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		boundaries = append(boundaries, r.Header.Get("Content-Type"))
		w.Write([]byte(`{"analysis":"","attributes":{}}`))
	}), "token")

	for i := 0; i < 2; i++ {
		_, err := client.AnalyzeImage(context.Background(), []byte{0xFF})
		require.NoError(t, err)
	}
	require.Len(t, boundaries, 2)
	require.NotEqual(t, boundaries[0], boundaries[1])
}

func TestAnalyzeImageServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), "token")

	_, err := client.AnalyzeImage(context.Background(), []byte{0xFF})

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, 500, serverErr.StatusCode)
}

func TestAnalyzeImageNonJSONBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}), "token")

	_, err := client.AnalyzeImage(context.Background(), []byte{0xFF})
	require.ErrorIs(t, err, ErrDecodingFailed)
}

func TestAnalyzeImageEmptyBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "token")

	_, err := client.AnalyzeImage(context.Background(), []byte{0xFF})
	require.ErrorIs(t, err, ErrNoData)
}

func TestFetchItemsDecodesMalformedEntries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/clothing-items", r.URL.Path)
		w.Write([]byte(`{"clothing_items": [
			{"id": "good", "attributes": {"garment_type": "jeans"}, "created_at": "2025-05-10T12:00:00.000Z"},
			{"attributes": {"main_colors": 42}, "created_at": "garbage"}
		]}`))
	}), "token")

	items, err := client.FetchItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "a partially-malformed entry still yields a renderable item")

	require.Equal(t, "good", items[0].ID)
	require.Equal(t, "jeans", items[0].Attributes.GarmentType)

	require.NotEmpty(t, items[1].ID, "missing ids are synthesized")
	require.True(t, items[1].Attributes.IsEmpty())
}

func TestDeleteItem(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/clothing-items/item-7", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success": true, "message": "deleted"}`))
	}), "token")

	ok, err := client.DeleteItem(context.Background(), "item-7")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login", r.URL.Path)
		require.Equal(t, "me@example.com", r.URL.Query().Get("email"))
		require.Equal(t, "secret", r.URL.Query().Get("password"))
		w.Write([]byte(`{"message": "ok", "access_token": "fresh-token"}`))
	}), "")

	token, err := client.Login(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "fresh-token", token)
}

func TestLoginFailureSurfacesDetail(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Invalid credentials"}`))
	}), "")

	_, err := client.Login(context.Background(), "me@example.com", "wrong")

	var opErr *OperationFailed
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "Invalid credentials", opErr.Message)
}

func TestSignup(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/signup", r.URL.Path)
		w.Write([]byte(`{"message": "created", "user_id": "user-9"}`))
	}), "")

	userID, err := client.Signup(context.Background(), "new@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "user-9", userID)
}

func TestTransportErrorMapsToNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokens := auth.NewMemoryStore()
	require.NoError(t, tokens.Set("token"))
	client, err := NewClient(server.URL, tokens)
	require.NoError(t, err)
	server.Close() // connection refused from here on

	_, err = client.FetchItems(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
	require.False(t, errors.Is(err, ErrAuthenticationRequired))
	require.True(t, strings.Contains(err.Error(), "network error"))
}
