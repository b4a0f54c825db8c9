package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantCSRF    string
		wantURL     string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'Accept: application/json' https://aeh.example.com/api/auth/me`,
			wantHeaders: map[string]string{"Accept": "application/json"},
			wantURL:     "https://aeh.example.com/api/auth/me",
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl -H "Accept: application/json" https://aeh.example.com/api/auth/me`,
			wantHeaders: map[string]string{"Accept": "application/json"},
			wantURL:     "https://aeh.example.com/api/auth/me",
		},
		{
			name:        "csrf header is captured",
			curlCmd:     `curl 'http://127.0.0.1:8501/api/home/recommend' -H 'x-csrf-token: tok-123'`,
			wantHeaders: map[string]string{"x-csrf-token": "tok-123"},
			wantCSRF:    "tok-123",
			wantURL:     "http://127.0.0.1:8501/api/home/recommend",
		},
		{
			name:        "cookie in -b flag with single quotes",
			curlCmd:     `curl -b 'aeh_session=abc123' https://aeh.example.com/api`,
			wantHeaders: map[string]string{},
			wantCookie:  "aeh_session=abc123",
		},
		{
			name:        "cookie in -H header",
			curlCmd:     `curl -H 'Cookie: aeh_session=abc123; theme=dark' https://aeh.example.com/api`,
			wantHeaders: map[string]string{},
			wantCookie:  "aeh_session=abc123; theme=dark",
		},
		{
			name:        "cookie header is excluded from regular headers",
			curlCmd:     `curl -H 'Cookie: aeh_session=abc123' -H 'Accept: */*' https://aeh.example.com/api`,
			wantHeaders: map[string]string{"Accept": "*/*"},
			wantCookie:  "aeh_session=abc123",
		},
		{
			name: "multiline curl with backslashes",
			curlCmd: `curl 'http://localhost:8501/api/chat/history?session_id=default' \
  -H 'accept: application/json' \
  -H 'x-csrf-token: abc' \
  -b 'aeh_session=s1'`,
			wantHeaders: map[string]string{"accept": "application/json", "x-csrf-token": "abc"},
			wantCookie:  "aeh_session=s1",
			wantCSRF:    "abc",
			wantURL:     "http://localhost:8501/api/chat/history?session_id=default",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://aeh.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://aeh.example.com`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand([]byte(tc.curlCmd))

			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCurlCommand() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}

			if len(result.Headers) != len(tc.wantHeaders) {
				t.Errorf("headers count = %v, want %v (%v)", len(result.Headers), len(tc.wantHeaders), result.Headers)
			}
			for key, want := range tc.wantHeaders {
				if got := result.Headers[key]; got != want {
					t.Errorf("header[%s] = %v, want %v", key, got, want)
				}
			}
			if result.Cookie != tc.wantCookie {
				t.Errorf("cookie = %v, want %v", result.Cookie, tc.wantCookie)
			}
			if result.CSRFToken != tc.wantCSRF {
				t.Errorf("csrf = %v, want %v", result.CSRFToken, tc.wantCSRF)
			}
			if tc.wantURL != "" && result.URL != tc.wantURL {
				t.Errorf("url = %v, want %v", result.URL, tc.wantURL)
			}
		})
	}
}

func TestBrowserSession(t *testing.T) {
	t.Run("Cookies", func(t *testing.T) {
		sess := &BrowserSession{Cookie: "aeh_session=abc; theme=dark"}
		cookies, err := sess.Cookies()
		if err != nil {
			t.Fatalf("Cookies() error = %v", err)
		}
		if len(cookies) != 2 {
			t.Fatalf("expected 2 cookies, got %d", len(cookies))
		}
		if cookies[0].Name != "aeh_session" || cookies[0].Value != "abc" {
			t.Errorf("unexpected first cookie %s=%s", cookies[0].Name, cookies[0].Value)
		}
	})

	t.Run("Cookies empty", func(t *testing.T) {
		cookies, err := (&BrowserSession{}).Cookies()
		if err != nil || cookies != nil {
			t.Errorf("expected no cookies and no error, got %v %v", cookies, err)
		}
	})

	t.Run("Origin", func(t *testing.T) {
		sess := &BrowserSession{URL: "http://127.0.0.1:8501/api/home/recommend?limit=24"}
		if got := sess.Origin(); got != "http://127.0.0.1:8501" {
			t.Errorf("Origin() = %s", got)
		}
		if got := (&BrowserSession{}).Origin(); got != "" {
			t.Errorf("expected empty origin, got %s", got)
		}
	})
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "curl.sh")

		curlCmd := `curl 'http://localhost:8501/api/auth/me' -H 'x-csrf-token: t1' -b 'aeh_session=s1'`
		if err := os.WriteFile(curlFile, []byte(curlCmd), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}
		if result.CSRFToken != "t1" {
			t.Errorf("CSRFToken = %v, want t1", result.CSRFToken)
		}
		if result.Cookie != "aeh_session=s1" {
			t.Errorf("Cookie = %v", result.Cookie)
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/file.sh"); err == nil {
			t.Error("ParseCurlFile() expected error for nonexistent file")
		}
	})
}
