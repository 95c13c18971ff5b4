package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raywatch/internal/domain"
)

// fakeCharger serves the login and get endpoints of one charger
type fakeCharger struct {
	t          *testing.T
	loginBody  string
	loginCode  int
	getBody    string
	getCode    int
	logins     atomic.Int32
	sawCookie  atomic.Bool
	lastGetReq atomic.Value
}

func (f *fakeCharger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, http.MethodPost, r.Method)
	assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(f.t, "raywatch-test", r.Header.Get("User-Agent"))

	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	assert.NoError(f.t, json.Unmarshal(body, &req))

	switch r.URL.Path {
	case DefaultLoginPath:
		f.logins.Add(1)
		assert.Equal(f.t, float64(1), req["version"])
		assert.Equal(f.t, map[string]any{"username": "Assembler", "password": "E2"}, req["login"])
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc"})
		if f.loginCode != 0 {
			w.WriteHeader(f.loginCode)
		}
		io.WriteString(w, f.loginBody)
	case DefaultGetPath:
		if c, err := r.Cookie("PHPSESSID"); err == nil && c.Value == "abc" {
			f.sawCookie.Store(true)
		}
		f.lastGetReq.Store(req)
		if f.getCode != 0 {
			w.WriteHeader(f.getCode)
		}
		io.WriteString(w, f.getBody)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, charger *fakeCharger) (*Client, domain.Unit) {
	t.Helper()
	charger.t = t
	srv := httptest.NewTLSServer(charger)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		Username:           "Assembler",
		Password:           "E2",
		Timeout:            5 * time.Second,
		InsecureSkipVerify: true,
		UserAgent:          "raywatch-test",
	})
	unit := domain.Unit{Address: strings.TrimPrefix(srv.URL, "https://"), Hostname: "ray-local"}
	return c, unit
}

func TestClient_Poll(t *testing.T) {
	charger := &fakeCharger{
		loginBody: `{"login":{"token":"tok1"}}`,
		getBody:   `{"settings":{"info":{"Hostname":"ray-1","EVSEs":{"e0":{"Status":"Charging"}}}}}`,
	}
	c, unit := newTestClient(t, charger)

	info, err := c.Poll(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, unit.Address, info.IP)
	assert.Equal(t, "ray-1", info.Hostname)
	assert.Equal(t, "Charging", info.Status)
	assert.Equal(t, domain.NotAvailable, info.ACVoltage)
	assert.True(t, info.Success)

	assert.True(t, charger.sawCookie.Load(), "get must reuse the login cookie jar")
	getReq := charger.lastGetReq.Load().(map[string]any)
	assert.Equal(t, "tok1", getReq["token"])
	assert.Equal(t, []any{"info"}, getReq["settings"])

	ev, err := json.Marshal(domain.StatusUpdate(info))
	require.NoError(t, err)
	assert.Contains(t, string(ev), `"event":"charger_status_update"`)
	assert.Contains(t, string(ev), `"hostname_info":"ray-1"`)
	assert.Contains(t, string(ev), `"status":"Charging"`)
	assert.Contains(t, string(ev), `"success":true`)
}

func TestClient_PollFreshLoginEachTime(t *testing.T) {
	charger := &fakeCharger{
		loginBody: `{"login":{"token":"tok1"}}`,
		getBody:   `{"settings":{"info":{"Hostname":"ray-1"}}}`,
	}
	c, unit := newTestClient(t, charger)

	for i := 0; i < 3; i++ {
		_, err := c.Poll(context.Background(), unit)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), charger.logins.Load())
}

func TestClient_EVSEMerge(t *testing.T) {
	charger := &fakeCharger{
		loginBody: `{"login":{"token":"tok1"}}`,
		getBody: `{"settings":{"info":{
			"Status":"Idle",
			"AC Voltage":230.5,
			"Charger Vendor":"Ray",
			"EVSEs":{"z9":{"Status":"Charging","Current":16},"a1":{"Status":"Faulted"}}
		}}}`,
	}
	c, unit := newTestClient(t, charger)

	info, err := c.Poll(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, "Charging", info.Status, "first EVSE in document order wins over info")
	assert.Equal(t, json.Number("16"), info.Current)
	assert.Equal(t, json.Number("230.5"), info.ACVoltage)
	assert.Equal(t, "Ray", info.ChargerVendor)
	assert.Equal(t, "ray-local", info.Hostname, "hostname falls back to the unit")
}

func TestClient_NumericToken(t *testing.T) {
	charger := &fakeCharger{
		loginBody: `{"login":{"token":12345}}`,
		getBody:   `{"settings":{"info":{"Hostname":"ray-1"}}}`,
	}
	c, unit := newTestClient(t, charger)

	sess, err := c.Login(context.Background(), unit)
	require.NoError(t, err)
	defer sess.Close()
	assert.Equal(t, "12345", sess.Token)

	_, err = c.FetchInfo(context.Background(), sess)
	require.NoError(t, err)

	getReq := charger.lastGetReq.Load().(map[string]any)
	assert.Equal(t, float64(12345), getReq["token"], "token is sent back as issued")
}

func TestClient_EmptyEVSEArray(t *testing.T) {
	charger := &fakeCharger{
		loginBody: `{"login":{"token":"tok1"}}`,
		getBody:   `{"settings":{"info":{"Hostname":"ray-1","Status":"Idle","EVSEs":[]}}}`,
	}
	c, unit := newTestClient(t, charger)

	info, err := c.Poll(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, "ray-1", info.Hostname)
	assert.Equal(t, "Idle", info.Status)
	assert.Equal(t, domain.NotAvailable, info.Current)
	assert.True(t, info.Success)
}

func TestClient_LoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		code       int
		wantStatus int
		wantDetail string
	}{
		{"no token", `{"api_errors":"bad credentials"}`, 0, 200, "bad credentials"},
		{"no token no detail", `{"login":{}}`, 0, 200, unknownError},
		{"empty token", `{"login":{"token":""}}`, 0, 200, unknownError},
		{"null token", `{"login":{"token":null}}`, 0, 200, unknownError},
		{"zero token", `{"login":{"token":0}}`, 0, 200, unknownError},
		{"object token", `{"login":{"token":{}}}`, 0, 200, unknownError},
		{"structured detail", `{"api_errors":["locked"]}`, 0, 200, `["locked"]`},
		{"http error", `{}`, http.StatusUnauthorized, http.StatusUnauthorized, ""},
		{"malformed", `not json`, 0, 200, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, unit := newTestClient(t, &fakeCharger{loginBody: tt.body, loginCode: tt.code})

			_, err := c.Poll(context.Background(), unit)
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, unit.Address, authErr.Address)
			assert.Equal(t, tt.wantStatus, authErr.Status)
			assert.Equal(t, tt.wantDetail, authErr.Detail)
		})
	}
}

func TestClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		code       int
		wantDetail string
	}{
		{"no settings", `{"api_errors":"token expired"}`, 0, "token expired"},
		{"settings not object", `{"settings":["info"]}`, 0, unknownError},
		{"no info", `{"settings":{}}`, 0, ""},
		{"empty info", `{"settings":{"info":{}}}`, 0, ""},
		{"info not object", `{"settings":{"info":"x"}}`, 0, ""},
		{"http error", `{}`, http.StatusInternalServerError, ""},
		{"malformed", `{"settings":`, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, unit := newTestClient(t, &fakeCharger{
				loginBody: `{"login":{"token":"tok1"}}`,
				getBody:   tt.body,
				getCode:   tt.code,
			})

			_, err := c.Poll(context.Background(), unit)
			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.wantDetail, fetchErr.Detail)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient(Config{Timeout: 500 * time.Millisecond, InsecureSkipVerify: true})

	_, err := c.Poll(context.Background(), domain.Unit{Address: "127.0.0.1:1"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, authErr.Status)
}

func TestClient_VerifyingTransportRejectsSelfSigned(t *testing.T) {
	charger := &fakeCharger{loginBody: `{"login":{"token":"tok1"}}`}
	c, unit := newTestClient(t, charger)
	c.cfg.InsecureSkipVerify = false

	_, err := c.Poll(context.Background(), unit)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(0), charger.logins.Load())
}
