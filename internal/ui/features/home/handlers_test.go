package home

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/testutil"
	"github.com/leapstack-labs/leaplineage/internal/ui/features"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupTestHandlers(t *testing.T, harvested bool) (*Handlers, *features.TestFixture) {
	t.Helper()

	fixture := features.SetupTestFixture(t, harvested)
	handlers := NewHandlers(fixture.Source, fixture.SessionStore, fixture.Notifier, testutil.NewTestLogger(t))
	return handlers, fixture
}

// =============================================================================
// HomePage Tests
// =============================================================================

func TestHomePage(t *testing.T) {
	tests := []struct {
		name      string
		harvested bool
		wantBody  []string
	}{
		{
			name:      "renders shell and harvested content",
			harvested: true,
			wantBody: []string{
				"<!doctype html>",
				"<title>Dashboard - leaplineage</title>",
				"data-init",
				"/updates",
				`id="ui-content"`,
				"<td>raw.orders</td><td>staging.orders</td><td>dbt</td><td>daily</td>",
				`<option value="ORD">Orders</option>`,
				"marts.revenue",
				"edges: state",
			},
		},
		{
			name:      "renders empty state before any harvest",
			harvested: false,
			wantBody: []string{
				`id="ui-content"`,
				"No harvest recorded yet.",
				"No lineage edges.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandlers(t, tt.harvested)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			h.HomePage(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want, "response should contain %q", want)
			}
		})
	}
}

func TestHomePage_Counts(t *testing.T) {
	h, _ := setupTestHandlers(t, true)

	rec := httptest.NewRecorder()
	h.HomePage(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `<span class="value">2</span><span class="label">projects</span>`)
	assert.Contains(t, body, `<span class="value">3</span><span class="label">sources</span>`)
	assert.Contains(t, body, `<span class="value">3</span><span class="label">edges</span>`)
	assert.Contains(t, body, `<ul class="roots"><li>raw.orders</li><li>stripe.charges</li></ul>`)
	assert.Contains(t, body, `<ul class="leaves"><li>marts.revenue</li></ul>`)
}

// =============================================================================
// Filter Tests
// =============================================================================

func TestFilter_StoresProjectInSession(t *testing.T) {
	h, _ := setupTestHandlers(t, true)

	form := url.Values{"project": {"BIL"}}
	req := httptest.NewRequest(http.MethodPost, "/filter", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.Filter(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	page := httptest.NewRecorder()
	h.HomePage(page, next)

	body := page.Body.String()
	assert.Contains(t, body, `<option value="BIL" selected>Billing</option>`)
	assert.Contains(t, body, "<td>stripe.charges</td><td>staging.orders</td>")
	assert.NotContains(t, body, "<td>raw.orders</td><td>staging.orders</td>")
	assert.Contains(t, body, `<span class="value">1</span><span class="label">edges</span>`)
}

// =============================================================================
// HomePageUpdates Tests
// =============================================================================

func TestHomePageUpdates_SendsUpdateOnBroadcast(t *testing.T) {
	h, fixture := setupTestHandlers(t, false)

	req := httptest.NewRequest(http.MethodGet, "/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HomePageUpdates(rec, req)
		close(done)
	}()

	// a harvest lands while the client is connected
	time.Sleep(50 * time.Millisecond)
	_, err := fixture.Pipeline.Run(context.Background())
	require.NoError(t, err)
	fixture.Notifier.Broadcast()

	<-done

	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 1, "should have at least 1 SSE event from broadcast")
	assert.Contains(t, body, "ui-content")
	assert.Contains(t, body, "marts.revenue")
}

func TestHomePageUpdates_NoInitialState(t *testing.T) {
	h, _ := setupTestHandlers(t, true)

	req := httptest.NewRequest(http.MethodGet, "/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	h.HomePageUpdates(rec, req)

	assert.Equal(t, 0, strings.Count(rec.Body.String(), "event:"), "should have no SSE events without broadcast")
}
