package httputil

import (
	"net/http"
	"net/url"
	"time"

	"dealwatch/config"
)

type Clients struct {
	Scraping *http.Client // browser-like, optionally proxied, for the target site
	API      *http.Client // direct, for internal endpoints
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := &http.Transport{}
	if proxyCfg != nil && proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
