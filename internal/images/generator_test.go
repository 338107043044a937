package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Bulls Win", req.Title)
		require.Equal(t, "editorial", req.Style)

		fmt.Fprint(w, `{"success":true,"imageUrl":"https://ai.example/hero.png"}`)
	}))
	defer srv.Close()

	g := NewAIGenerator(srv.URL, time.Second)
	img, err := g.Generate(context.Background(), "Bulls Win", "A recap", "editorial")
	require.NoError(t, err)
	require.Equal(t, "https://ai.example/hero.png", img.URL)
	require.Equal(t, discovery.TierGenerated, img.Source)
}

func TestGenerateDeclinedIsEmptyNotError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer srv.Close()

	g := NewAIGenerator(srv.URL, time.Second)
	img, err := g.Generate(context.Background(), "Title", "", "")
	require.NoError(t, err)
	require.Empty(t, img.URL)
}

func TestGenerateErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewAIGenerator(srv.URL, time.Second)
	_, err := g.Generate(context.Background(), "Title", "", "")
	require.Error(t, err)
}

func TestGenerateWithoutEndpoint(t *testing.T) {
	t.Parallel()

	g := NewAIGenerator("", time.Second)
	_, err := g.Generate(context.Background(), "Title", "", "")
	require.Error(t, err)
}
