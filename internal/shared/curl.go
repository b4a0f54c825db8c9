// Utilities for lifting a browser session out of a "copy as cURL" command.
package shared

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+'([^']+)'|(?:-H|--header)\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	curlURLRe    = regexp.MustCompile(`'(https?://[^']+)'|"(https?://[^"]+)"|\s(https?://\S+)`)
)

// BrowserSession is what a copied request reveals about the logged-in browser.
type BrowserSession struct {
	URL       string
	Headers   map[string]string
	Cookie    string
	CSRFToken string
}

// ParseCurlFile reads a file containing a cURL command and extracts the session from it.
func ParseCurlFile(filepath string) (*BrowserSession, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command and extracts headers, cookie and CSRF token.
func ParseCurlCommand(data []byte) (*BrowserSession, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	sess := &BrowserSession{Headers: make(map[string]string)}

	for _, match := range curlHeaderRe.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch strings.ToLower(key) {
		case "cookie":
			if sess.Cookie == "" {
				sess.Cookie = value
			}
		case "x-csrf-token":
			sess.CSRFToken = value
			sess.Headers[key] = value
		default:
			sess.Headers[key] = value
		}
	}

	// -b wins over a Cookie header
	if match := curlCookieRe.FindStringSubmatch(curlCmd); match != nil {
		sess.Cookie = firstGroup(match)
	}

	if match := curlURLRe.FindStringSubmatch(curlCmd); match != nil {
		sess.URL = firstGroup(match)
	}

	if len(sess.Headers) == 0 && sess.Cookie == "" {
		return nil, fmt.Errorf("no headers found in curl command")
	}

	return sess, nil
}

// Cookies parses the captured Cookie header value.
func (s *BrowserSession) Cookies() ([]*http.Cookie, error) {
	if s.Cookie == "" {
		return nil, nil
	}
	cookies, err := http.ParseCookie(s.Cookie)
	if err != nil {
		return nil, fmt.Errorf("%w: cookie: %v", ErrInvalidInput, err)
	}
	return cookies, nil
}

// Origin returns scheme and host of the captured request URL.
func (s *BrowserSession) Origin() string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
