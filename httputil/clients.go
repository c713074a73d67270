package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"flipscout/config"
)

type Clients struct {
	Scraping *http.Client // proxied, for target sites
	API      *http.Client // direct, for drafting / central APIs
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyCfg != nil && proxyCfg.URL != "" {
		proxyURL, _ := url.Parse(proxyCfg.URL)
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	scraping := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
