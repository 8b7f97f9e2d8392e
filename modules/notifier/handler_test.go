package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/modules/notifier"
	"github.com/dmitrymomot/notifykit/pkg/dispatch"
)

type stubStats struct {
	stats dispatch.Stats
	err   error
}

func (s stubStats) Stats(_ context.Context) (dispatch.Stats, error) {
	return s.stats, s.err
}

func newTestServer(t *testing.T, store *notifier.MemoryStorage, opts notifier.RouterOptions) *httptest.Server {
	t.Helper()

	if opts.Service == nil {
		svc, err := notifier.NewService(store, store, nil, &stubEnqueuer{}, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		opts.Service = svc
	}

	r := chi.NewRouter()
	r.Mount("/", notifier.Router(opts))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func TestHandler_CreateNotification(t *testing.T) {
	t.Parallel()

	t.Run("accepts a valid request", func(t *testing.T) {
		t.Parallel()

		store := notifier.NewMemoryStorage()
		srv := newTestServer(t, store, notifier.RouterOptions{})

		body := `{
			"user_id": "` + uuid.NewString() + `",
			"template_id": "welcome_email",
			"channel": "email",
			"recipient": "user@example.com",
			"data": {"name": "Ada"}
		}`

		resp, err := http.Post(srv.URL+"/notifications", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		accepted := decodeData[map[string]string](t, resp)
		assert.Equal(t, string(notifier.StatusQueued), accepted["status"])
		assert.NotEmpty(t, accepted["id"])
	})

	t.Run("repeated request returns the original id", func(t *testing.T) {
		t.Parallel()

		store := notifier.NewMemoryStorage()
		srv := newTestServer(t, store, notifier.RouterOptions{})

		body := `{
			"user_id": "` + uuid.NewString() + `",
			"template_id": "welcome_email",
			"channel": "email",
			"recipient": "user@example.com",
			"data": {"name": "Ada"}
		}`

		post := func() (int, map[string]string) {
			resp, err := http.Post(srv.URL+"/notifications", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			return resp.StatusCode, decodeData[map[string]string](t, resp)
		}

		status1, first := post()
		status2, second := post()

		assert.Equal(t, http.StatusAccepted, status1)
		assert.Equal(t, http.StatusAccepted, status2)
		assert.Equal(t, first["id"], second["id"])
	})

	t.Run("validation errors map to 422", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, notifier.NewMemoryStorage(), notifier.RouterOptions{})

		resp, err := http.Post(srv.URL+"/notifications", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var envelope struct {
			Error struct {
				Code    string              `json:"code"`
				Details map[string][]string `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.Equal(t, "validation_error", envelope.Error.Code)
		assert.Contains(t, envelope.Error.Details, "user_id")
		assert.Contains(t, envelope.Error.Details, "template_id")
	})

	t.Run("malformed JSON maps to 422", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, notifier.NewMemoryStorage(), notifier.RouterOptions{})

		resp, err := http.Post(srv.URL+"/notifications", "application/json", strings.NewReader(`{nope`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestHandler_GetNotification(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		store := notifier.NewMemoryStorage()
		n := seedNotification(t, store, notifier.StatusQueued)
		srv := newTestServer(t, store, notifier.RouterOptions{})

		resp, err := http.Get(srv.URL + "/notifications/" + n.ID.String())
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		got := decodeData[notifier.Notification](t, resp)
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, notifier.StatusQueued, got.Status)
	})

	t.Run("missing and malformed ids return 404", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, notifier.NewMemoryStorage(), notifier.RouterOptions{})

		for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
			resp, err := http.Get(srv.URL + "/notifications/" + id)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		}
	})
}

func TestHandler_History(t *testing.T) {
	t.Parallel()

	store := notifier.NewMemoryStorage()
	n := seedNotification(t, store, notifier.StatusProcessing)

	ctx := context.Background()
	_, err := store.Append(ctx, notifier.AppendLogParams{NotificationID: n.ID, Status: notifier.LogStatusFailed, ErrorMessage: "timeout"})
	require.NoError(t, err)
	_, err = store.Append(ctx, notifier.AppendLogParams{NotificationID: n.ID, Status: notifier.LogStatusSent})
	require.NoError(t, err)

	srv := newTestServer(t, store, notifier.RouterOptions{})

	resp, err := http.Get(srv.URL + "/notifications/" + n.ID.String() + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	history := decodeData[[]notifier.DeliveryLog](t, resp)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Attempt)
	assert.Equal(t, 2, history[1].Attempt)
}

func TestHandler_ListByUser(t *testing.T) {
	t.Parallel()

	store := notifier.NewMemoryStorage()
	userID := uuid.New()

	ctx := context.Background()
	for range 3 {
		require.NoError(t, store.Create(ctx, newNotification(userID, uuid.NewString())))
	}

	srv := newTestServer(t, store, notifier.RouterOptions{})

	t.Run("returns the user's notifications", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(srv.URL + "/notifications/user/" + userID.String() + "?limit=2")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		list := decodeData[[]notifier.Notification](t, resp)
		assert.Len(t, list, 2)
	})

	t.Run("unknown user gets an empty list", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(srv.URL + "/notifications/user/" + uuid.NewString())
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		list := decodeData[[]notifier.Notification](t, resp)
		assert.Empty(t, list)
	})

	t.Run("malformed user id maps to 422", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(srv.URL + "/notifications/user/whoever")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestHandler_Retry(t *testing.T) {
	t.Parallel()

	t.Run("failed notification", func(t *testing.T) {
		t.Parallel()

		store := notifier.NewMemoryStorage()
		n := seedNotification(t, store, notifier.StatusFailed)
		srv := newTestServer(t, store, notifier.RouterOptions{})

		resp, err := http.Post(srv.URL+"/notifications/"+n.ID.String()+"/retry", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		accepted := decodeData[map[string]string](t, resp)
		assert.Equal(t, string(notifier.StatusRetrying), accepted["status"])
	})

	t.Run("non-failed notification maps to 409", func(t *testing.T) {
		t.Parallel()

		store := notifier.NewMemoryStorage()
		n := seedNotification(t, store, notifier.StatusQueued)
		srv := newTestServer(t, store, notifier.RouterOptions{})

		resp, err := http.Post(srv.URL+"/notifications/"+n.ID.String()+"/retry", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestHandler_QueueStats(t *testing.T) {
	t.Parallel()

	store := notifier.NewMemoryStorage()
	srv := newTestServer(t, store, notifier.RouterOptions{
		Stats: stubStats{stats: dispatch.Stats{Waiting: 4, Active: 1, Completed: 10, Failed: 2}},
	})

	resp, err := http.Get(srv.URL + "/queue/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeData[dispatch.Stats](t, resp)
	assert.Equal(t, 4, stats.Waiting)
	assert.Equal(t, 10, stats.Completed)
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, notifier.NewMemoryStorage(), notifier.RouterOptions{
			Healthchecks: map[string]notifier.Healthcheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
		})

		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		report := decodeData[map[string]string](t, resp)
		assert.Equal(t, "ok", report["postgres"])
		assert.Equal(t, "ok", report["redis"])
	})

	t.Run("failing dependency turns 503", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, notifier.NewMemoryStorage(), notifier.RouterOptions{
			Healthchecks: map[string]notifier.Healthcheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
		})

		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		report := decodeData[map[string]string](t, resp)
		assert.Equal(t, "ok", report["postgres"])
		assert.Contains(t, report["redis"], "connection refused")
	})
}
