package gallery

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

// NewRouter wires the gallery endpoints.
func NewRouter(h *Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.POST("/doUpload", h.Upload)  // store an image
	r.GET("/filelist", h.List)     // list a directory
	r.GET("/image/:name", h.Image) // fetch an image
	r.DELETE("/delete", h.Delete)  // delete by gallery path
	r.GET("/delete", h.Delete)     // the firmware's UI deletes via GET

	return r
}

// NewServer wraps the router in an http.Server.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
