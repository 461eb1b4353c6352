package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Header reads stay tight; body read and write
// timeouts leave headroom for multipart answer-file uploads.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}
