package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

type scriptedResponse struct {
	status int
	body   []byte
	err    error
}

type scriptedGetter struct {
	responses map[string]scriptedResponse
	calls     []string
}

func (g *scriptedGetter) Get(_ context.Context, rawURL string) (int, []byte, error) {
	g.calls = append(g.calls, rawURL)
	resp, ok := g.responses[rawURL]
	if !ok {
		return 0, nil, errors.New("unexpected url " + rawURL)
	}
	return resp.status, resp.body, resp.err
}

type scriptedRenderer struct {
	available bool
	result    discovery.RenderResult
	calls     int
}

func (r *scriptedRenderer) IsAvailable() bool { return r.available }

func (r *scriptedRenderer) Render(context.Context, string) discovery.RenderResult {
	r.calls++
	return r.result
}

const (
	pageURL   = "https://www.example.com/news/story"
	ampURL    = "https://www.example.com/amp/news/story"
	mobileURL = "https://m.example.com/news/story"
)

func TestFetchDirectSuccessStopsChain(t *testing.T) {
	t.Parallel()

	getter := &scriptedGetter{responses: map[string]scriptedResponse{
		pageURL: {status: 200, body: []byte("<html>content</html>")},
	}}
	renderer := &scriptedRenderer{available: true}
	sel := NewSelector(getter, renderer, zap.NewNop())

	res := sel.Fetch(context.Background(), pageURL)
	require.True(t, res.Success)
	require.Equal(t, discovery.BranchDirect, res.Metadata.BranchUsed)
	require.Equal(t, discovery.FetchSuccess, res.Metadata.FetchClass)
	require.False(t, res.Metadata.RenderUsed)
	require.Equal(t, []string{pageURL}, getter.calls, "later branches must not run")
	require.Zero(t, renderer.calls)
}

func TestFetchFallsThroughToAMP(t *testing.T) {
	t.Parallel()

	getter := &scriptedGetter{responses: map[string]scriptedResponse{
		pageURL: {status: 403, body: []byte("blocked")},
		ampURL:  {status: 200, body: []byte("<html>amp content</html>")},
	}}
	sel := NewSelector(getter, nil, zap.NewNop())

	res := sel.Fetch(context.Background(), pageURL)
	require.True(t, res.Success)
	require.Equal(t, discovery.BranchAMP, res.Metadata.BranchUsed)
	require.Equal(t, []string{pageURL, ampURL}, getter.calls)
}

func TestFetchFallsThroughToRendered(t *testing.T) {
	t.Parallel()

	getter := &scriptedGetter{responses: map[string]scriptedResponse{
		pageURL:   {status: 403, body: []byte("blocked")},
		ampURL:    {status: 404, body: []byte("missing")},
		mobileURL: {status: 200, body: nil}, // empty body is not a success
	}}
	renderer := &scriptedRenderer{
		available: true,
		result: discovery.RenderResult{
			HTML:    "<html>rendered</html>",
			Text:    "rendered",
			Title:   "Story",
			Success: true,
		},
	}
	sel := NewSelector(getter, renderer, zap.NewNop())

	res := sel.Fetch(context.Background(), pageURL)
	require.True(t, res.Success)
	require.Equal(t, discovery.BranchRendered, res.Metadata.BranchUsed)
	require.True(t, res.Metadata.RenderUsed)
	require.Equal(t, 1, renderer.calls)
	require.Equal(t, "Story", res.Title)
}

func TestFetchSkipsRenderedWhenUnavailable(t *testing.T) {
	t.Parallel()

	getter := &scriptedGetter{responses: map[string]scriptedResponse{
		pageURL:   {status: 500, body: []byte("err")},
		ampURL:    {status: 500, body: []byte("err")},
		mobileURL: {status: 500, body: []byte("err")},
	}}
	renderer := &scriptedRenderer{available: false}
	sel := NewSelector(getter, renderer, zap.NewNop())

	res := sel.Fetch(context.Background(), pageURL)
	require.False(t, res.Success)
	require.Zero(t, renderer.calls)
	require.Equal(t, discovery.BranchMobile, res.Metadata.BranchUsed,
		"failure metadata reports the last attempted branch")
	require.Equal(t, discovery.FetchError, res.Metadata.FetchClass)
}

func TestFetchClassifiesPaywallOnTotalFailure(t *testing.T) {
	t.Parallel()

	getter := &scriptedGetter{responses: map[string]scriptedResponse{
		pageURL:   {status: 403, body: []byte("x")},
		ampURL:    {status: 403, body: []byte("x")},
		mobileURL: {status: 401, body: []byte("x")},
	}}
	sel := NewSelector(getter, nil, zap.NewNop())

	res := sel.Fetch(context.Background(), pageURL)
	require.False(t, res.Success)
	require.Equal(t, discovery.FetchPaywallOrBlock, res.Metadata.FetchClass)
	require.Equal(t, 401, res.Metadata.StatusCode)
}

func TestFetchClassifiesTimeout(t *testing.T) {
	t.Parallel()

	// An m.-host amp-path URL has no derivable variants, so only the
	// direct branch runs.
	direct := "https://m.example.org/amp/story"
	getter := &scriptedGetter{responses: map[string]scriptedResponse{
		direct: {err: context.DeadlineExceeded},
	}}
	sel := NewSelector(getter, nil, zap.NewNop())

	res := sel.Fetch(context.Background(), direct)
	require.False(t, res.Success)
	require.Equal(t, discovery.FetchTimeout, res.Metadata.FetchClass)
}

func TestFetchRenderedUnavailabilityIsClassifiedError(t *testing.T) {
	t.Parallel()

	getter := &scriptedGetter{responses: map[string]scriptedResponse{
		pageURL:   {status: 500, body: []byte("x")},
		ampURL:    {status: 500, body: []byte("x")},
		mobileURL: {status: 500, body: []byte("x")},
	}}
	renderer := &scriptedRenderer{
		available: true,
		result:    discovery.RenderResult{Error: discovery.RenderNotAvailable},
	}
	sel := NewSelector(getter, renderer, zap.NewNop())

	res := sel.Fetch(context.Background(), pageURL)
	require.False(t, res.Success)
	require.Equal(t, discovery.BranchRendered, res.Metadata.BranchUsed)
	require.Equal(t, discovery.RenderNotAvailable, res.Metadata.FailureReason)
}
