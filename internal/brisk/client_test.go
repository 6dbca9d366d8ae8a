package brisk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockVendor creates a vendor endpoint that answers every request with body
func mockVendor(t *testing.T, status int, body string, check func(*http.Request)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newTestClient(url string) *Client {
	logger, _ := zap.NewDevelopment()
	return NewClient(NewIdentity("AA:BB:CC:DD:EE:FF", ""), WithBaseURL(url), WithLogger(logger))
}

func TestClient_FetchState(t *testing.T) {
	t.Run("success returns data", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK,
			`{"resCode":"0","resMsg":"ok","data":{"data01":1,"data04":293,"data0B":"12.5","data10":40}}`,
			func(r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/devSta/getState/app", r.URL.Path)
				assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
				assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "AA:BB:CC:DD:EE:FF", r.PostForm.Get("device"))
				assert.Equal(t, "BSK_BR", r.PostForm.Get("deviceModel"))
			})
		defer server.Close()

		snapshot, err := newTestClient(server.URL).FetchState(context.Background())
		require.NoError(t, err)
		assert.Equal(t, float64(293), snapshot["data04"])
		assert.Equal(t, Known(293), Temperature(snapshot))
	})

	t.Run("success without data yields empty snapshot", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":"0"}`, nil)
		defer server.Close()

		snapshot, err := newTestClient(server.URL).FetchState(context.Background())
		require.NoError(t, err)
		assert.Empty(t, snapshot)
		assert.False(t, ValveOpen(snapshot).Known)
	})

	t.Run("vendor error", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":"1","resMsg":"device offline"}`, nil)
		defer server.Close()

		snapshot, err := newTestClient(server.URL).FetchState(context.Background())
		assert.Nil(t, snapshot)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "1", apiErr.Code)
		assert.Equal(t, "device offline", apiErr.Message)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		server := mockVendor(t, http.StatusServiceUnavailable, `{"resCode":"0"}`, nil)
		defer server.Close()

		_, err := newTestClient(server.URL).FetchState(context.Background())

		var statusErr *HTTPStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	})

	t.Run("numeric vendor error", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":1,"resMsg":"device offline"}`, nil)
		defer server.Close()

		_, err := newTestClient(server.URL).FetchState(context.Background())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "1", apiErr.Code)
		assert.NotErrorIs(t, err, ErrDecode)
	})

	t.Run("numeric zero is success", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":0,"data":{"data04":300}}`, nil)
		defer server.Close()

		snapshot, err := newTestClient(server.URL).FetchState(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Known(300), Temperature(snapshot))
	})

	t.Run("non-2xx with truncated body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "100")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"resCode"`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).FetchState(context.Background())

		var statusErr *HTTPStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
		assert.NotErrorIs(t, err, ErrTransport)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `<html>gateway error</html>`, nil)
		defer server.Close()

		snapshot, err := newTestClient(server.URL).FetchState(context.Background())
		assert.Nil(t, snapshot)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("data is not an object", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":"0","data":"nope"}`, nil)
		defer server.Close()

		_, err := newTestClient(server.URL).FetchState(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":"0"}`, nil)
		url := server.URL
		server.Close()

		_, err := newTestClient(url).FetchState(context.Background())
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("caller timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := newTestClient(server.URL).FetchState(ctx)
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_SetValve(t *testing.T) {
	tests := []struct {
		name      string
		on        bool
		wantState string
	}{
		{name: "open", on: true, wantState: "1"},
		{name: "close", on: false, wantState: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockVendor(t, http.StatusOK, `{"resCode":"0"}`, func(r *http.Request) {
				assert.Equal(t, "/devSta/setValve/app", r.URL.Path)
				assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "AA:BB:CC:DD:EE:FF", r.PostForm.Get("device"))
				assert.Equal(t, "BSK_BR", r.PostForm.Get("deviceModel"))
				assert.Equal(t, tt.wantState, r.PostForm.Get("valve_state"))
			})
			defer server.Close()

			err := newTestClient(server.URL).SetValve(context.Background(), tt.on)
			assert.NoError(t, err)
		})
	}

	t.Run("rejected", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":"5","resMsg":"not permitted"}`, nil)
		defer server.Close()

		err := newTestClient(server.URL).SetValve(context.Background(), true)

		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "not permitted", rejected.Message)
	})

	t.Run("rejected with numeric code", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `{"resCode":5,"resMsg":"not permitted"}`, nil)
		defer server.Close()

		err := newTestClient(server.URL).SetValve(context.Background(), true)

		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "5", rejected.Code)
		assert.Equal(t, "not permitted", rejected.Message)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		server := mockVendor(t, http.StatusNotFound, `not found`, nil)
		defer server.Close()

		err := newTestClient(server.URL).SetValve(context.Background(), false)

		var statusErr *HTTPStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := mockVendor(t, http.StatusOK, `ok`, nil)
		defer server.Close()

		err := newTestClient(server.URL).SetValve(context.Background(), false)
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestResultCode_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ResultCode
		wantErr bool
	}{
		{name: "string", input: `{"resCode":"0"}`, want: "0"},
		{name: "integer", input: `{"resCode":12}`, want: "12"},
		{name: "null", input: `{"resCode":null}`, want: ""},
		{name: "absent", input: `{}`, want: ""},
		{name: "bool", input: `{"resCode":true}`, wantErr: true},
		{name: "object", input: `{"resCode":{}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			err := json.Unmarshal([]byte(tt.input), &env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.ResCode)
		})
	}
}

func TestNewIdentity_DefaultModel(t *testing.T) {
	assert.Equal(t, "BSK_BR", NewIdentity("dev", "").DeviceModel)
	assert.Equal(t, "BSK_XX", NewIdentity("dev", "BSK_XX").DeviceModel)
}
