package util

import (
	"net/http"
	"net/url"
)

// NewProxyFunc builds a proxy selector for an http.Transport from explicit
// proxy URLs. Requests pick the URL matching their scheme, falling back to
// the plain HTTP proxy, then to the standard environment variables. With
// neither URL set the selector is exactly http.ProxyFromEnvironment.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	var httpURL, httpsURL *url.URL
	var httpErr, httpsErr error
	if httpProxy != "" {
		httpURL, httpErr = url.Parse(httpProxy)
	}
	if httpsProxy != "" {
		httpsURL, httpsErr = url.Parse(httpsProxy)
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return httpsURL, httpsErr
		}
		if httpProxy != "" {
			return httpURL, httpErr
		}
		return http.ProxyFromEnvironment(req)
	}
}
