package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionwatch/internal/catalog"
	logx "auctionwatch/pkg/logx"
)

const feed = `{"server":[
  {"key":101,"cpu":"Intel Core i7-6700","ram_size":64,"hdd_hr":["2x 512 GB SSD"],"hdd_count":2,"price":"37.00","description":["ECC"],"next_reduce":7200},
  {"key":102,"cpu":"AMD Ryzen 7 1700X","ram_size":"64","hdd_hr":["2x 8 TB HDD"],"hdd_count":2,"price":41.18,"next_reduce":120}
],"serverCount":2}`

func TestFetch(t *testing.T) {
	t.Parallel()

	gotUA := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	f := New(Config{URL: srv.URL, UserAgent: "auctionwatch-test"}, srv.Client(), logx.Nop())
	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "auctionwatch-test", <-gotUA)
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, catalog.Key("101"), snap.Listings[0].Key)
	assert.InDelta(t, 41.18, snap.Listings[1].Price.Float(), 1e-9)
	assert.Equal(t, catalog.Fingerprint(snap.Listings), snap.Fingerprint)
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "server error", status: http.StatusBadGateway, body: "oops", wantStatus: http.StatusBadGateway},
		{name: "malformed json", status: http.StatusOK, body: "{", wantStatus: http.StatusOK},
		{name: "missing server list", status: http.StatusOK, body: `{"servers":[]}`, wantStatus: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(Config{URL: srv.URL}, srv.Client(), logx.Nop()).Fetch(context.Background())
			var fe *FetchError
			require.True(t, errors.As(err, &fe), "want *FetchError, got %v", err)
			assert.Equal(t, tc.wantStatus, fe.Status)
			assert.Equal(t, srv.URL, fe.URL)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client(), logx.Nop())
	_, err := f.Fetch(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecodeEmptyList(t *testing.T) {
	t.Parallel()

	ls, err := Decode([]byte(`{"server":[]}`))
	require.NoError(t, err)
	assert.Empty(t, ls)
}
