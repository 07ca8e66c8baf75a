package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/config"
)

func TestOAuthRedirectSetsState(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil, nil, &config.Config{GoogleClientID: "client"})

	rec := httptest.NewRecorder()
	h.GoogleAuth(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, oauthStateCookie, cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, cookies[0].Value, location.Query().Get("state"))

	rec = httptest.NewRecorder()
	NewAuthHandler(nil, nil, nil, nil, &config.Config{}).GitHubAuth(rec, httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "provider_disabled", decodeError(t, rec).Code)
}

func TestOAuthCallbackRejectsStateMismatch(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil, nil, &config.Config{GoogleClientID: "client"})

	tests := []struct {
		name   string
		query  string
		cookie string
	}{
		{"no cookie", "?state=abc&code=x", ""},
		{"no state", "?code=x", "abc"},
		{"different state", "?state=abc&code=x", "xyz"},
		{"empty both", "?code=x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.GoogleCallback(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "invalid_oauth_state", decodeError(t, rec).Code)
		})
	}
}
