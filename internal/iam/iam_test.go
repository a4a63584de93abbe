package iam

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/oauth2"
	"k8s.io/apimachinery/pkg/util/wait"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

var start = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func fakeJWT(account string) string {
	enc := base64.RawURLEncoding
	claims, _ := json.Marshal(map[string]any{"account": map[string]string{"bss": account}})
	return enc.EncodeToString([]byte(`{"alg":"RS256"}`)) + "." + enc.EncodeToString(claims) + ".sig"
}

func TestStoreNotAuthenticated(t *testing.T) {
	s := NewStore(DefaultSafetyMargin, testingclock.NewFakePassiveClock(start))

	_, err := s.CurrentToken()
	require.Error(t, err)
	assert.True(t, errors.Is(err, cloud.ErrAuth))
	assert.Contains(t, err.Error(), "not authenticated")
	assert.False(t, s.IsValid(start))
}

func TestStoreValidityWindow(t *testing.T) {
	fc := testingclock.NewFakePassiveClock(start)
	s := NewStore(2*time.Minute, fc)
	s.Install("tok", start.Add(20*time.Minute))

	assert.True(t, s.IsValid(start))
	assert.True(t, s.IsValid(start.Add(18*time.Minute-time.Second)))
	assert.False(t, s.IsValid(start.Add(18*time.Minute)))

	// Inside the margin the token is still usable, only renewal is due.
	fc.SetTime(start.Add(19 * time.Minute))
	tok, err := s.CurrentToken()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	fc.SetTime(start.Add(20 * time.Minute))
	_, err = s.CurrentToken()
	require.Error(t, err)
	assert.True(t, cloud.IsKind(err, cloud.KindAuth))
	assert.Contains(t, err.Error(), "token expired")
}

func TestStoreTokenSource(t *testing.T) {
	s := NewStore(DefaultSafetyMargin, testingclock.NewFakePassiveClock(start))
	s.Install("abc", start.Add(time.Hour))

	var ts oauth2.TokenSource = s
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
}

func TestStoreAccountIDMemoized(t *testing.T) {
	s := NewStore(DefaultSafetyMargin, testingclock.NewFakePassiveClock(start))

	_, err := s.AccountID()
	assert.True(t, cloud.IsKind(err, cloud.KindAuth))

	s.Install(fakeJWT("acct-1"), start.Add(time.Hour))
	id, err := s.AccountID()
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id)

	s.Install(fakeJWT("acct-2"), start.Add(time.Hour))
	id, err = s.AccountID()
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(DefaultSafetyMargin, nil)
	s.Install("t0", time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, err := s.CurrentToken()
				assert.NoError(t, err)
			}
		}()
	}
	for j := 0; j < 200; j++ {
		s.Install("t1", time.Now().Add(time.Hour))
	}
	wg.Wait()
}

func TestClientExchange(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind cloud.Kind
		wantExp  time.Time
	}{
		{
			name:    "expiration timestamp",
			status:  http.StatusOK,
			body:    `{"access_token":"at","token_type":"Bearer","expires_in":1200,"expiration":1777627200}`,
			wantExp: time.Unix(1777627200, 0),
		},
		{
			name:    "expires_in only",
			status:  http.StatusOK,
			body:    `{"access_token":"at","token_type":"Bearer","expires_in":1200}`,
			wantExp: start.Add(20 * time.Minute),
		},
		{
			name:     "bad api key",
			status:   http.StatusBadRequest,
			body:     `{"errorCode":"BXNIM0415E","errorMessage":"Provided API key could not be found."}`,
			wantKind: cloud.KindAuth,
		},
		{
			name:     "iam outage",
			status:   http.StatusServiceUnavailable,
			body:     `unavailable`,
			wantKind: cloud.KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "urn:ibm:params:oauth:grant-type:apikey", r.PostForm.Get("grant_type"))
				assert.Equal(t, "my-key", r.PostForm.Get("apikey"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(WithTokenURL(server.URL), WithNow(func() time.Time { return start }))
			tok, err := c.Exchange(context.Background(), "my-key")
			if tt.wantKind != cloud.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, cloud.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "at", tok.AccessToken)
			assert.True(t, tok.Expiry.Equal(tt.wantExp), "expiry %v", tok.Expiry)
		})
	}
}

func TestClientRejectsEmptyKey(t *testing.T) {
	_, err := NewClient().Exchange(context.Background(), "  ")
	assert.True(t, cloud.IsKind(err, cloud.KindAuth))
}

// stubExchanger issues tokens with a fixed lifetime on the fake clock.
type stubExchanger struct {
	clock    *testingclock.FakeClock
	lifetime time.Duration

	mu    sync.Mutex
	calls int
	fail  error
}

func (s *stubExchanger) Exchange(ctx context.Context, apiKey string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return nil, s.fail
	}
	return &oauth2.Token{AccessToken: fakeJWT("acct"), Expiry: s.clock.Now().Add(s.lifetime)}, nil
}

func (s *stubExchanger) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubExchanger) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

var noJitter = wait.Backoff{Duration: 5 * time.Second, Factor: 2, Steps: 4, Cap: time.Minute}

func TestRefresherSchedulesAtLifetimeMinusMargin(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := testingclock.NewFakeClock(start)
	store := NewStore(2*time.Minute, fc)
	ex := &stubExchanger{clock: fc, lifetime: 20 * time.Minute}
	r := NewRefresher(store, ex, "key", WithClock(fc), WithBackoff(noJitter))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, 1, ex.Calls())
	assert.Equal(t, StateIdle, r.State())
	assert.True(t, r.NextRefresh().Equal(start.Add(18*time.Minute)), "next refresh %v", r.NextRefresh())

	fc.Step(18*time.Minute - time.Second)
	assert.Never(t, func() bool { return ex.Calls() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	fc.Step(time.Second)
	require.Eventually(t, func() bool { return ex.Calls() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return r.NextRefresh().Equal(start.Add(36 * time.Minute))
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRefresherFailureBacksOffWithoutCrashing(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := testingclock.NewFakeClock(start)
	store := NewStore(2*time.Minute, fc)
	ex := &stubExchanger{clock: fc, lifetime: 20 * time.Minute}
	ex.setFail(cloud.Errorf(cloud.KindAuth, "iam token exchange", "Provided API key could not be found."))

	var mu sync.Mutex
	var notified []error
	r := NewRefresher(store, ex, "key", WithClock(fc), WithBackoff(noJitter), WithNotify(func(err error) {
		mu.Lock()
		notified = append(notified, err)
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, StateFailed, r.State())
	assert.True(t, r.NextRefresh().Equal(start.Add(5*time.Second)))

	// Provider calls fail with an auth error instead of using a stale token.
	_, err := store.Token()
	assert.True(t, errors.Is(err, cloud.ErrAuth))

	// Second attempt waits twice as long.
	fc.Step(5 * time.Second)
	require.Eventually(t, func() bool { return ex.Calls() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return r.NextRefresh().Equal(start.Add(15 * time.Second))
	}, time.Second, time.Millisecond)
	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)

	// Recovery installs a token and reports success.
	ex.setFail(nil)
	fc.Step(10 * time.Second)
	require.Eventually(t, func() bool { return r.State() == StateIdle }, time.Second, time.Millisecond)
	_, err = store.Token()
	assert.NoError(t, err)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notified, 3)
	assert.Error(t, notified[0])
	assert.NoError(t, notified[2])
}
