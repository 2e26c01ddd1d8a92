package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

func (s *Server) staticRoutes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		s.opts.Visitors.Record(c.GetHeader("CF-IPCountry"))
		s.serveFile(c, "landing.html")
	})
	r.GET("/news", func(c *gin.Context) { s.serveFile(c, "viewer.html") })
	r.GET("/reddit", func(c *gin.Context) { s.serveFile(c, "viewer.html") })
	r.GET("/offline", func(c *gin.Context) { s.serveFile(c, "index.html") })
	r.GET("/manifest.json", func(c *gin.Context) { s.serveFile(c, "manifest.json") })
	r.GET("/sw.js", func(c *gin.Context) {
		c.Header("Service-Worker-Allowed", "/")
		c.Header("Cache-Control", "no-cache")
		s.serveFile(c, "sw.js")
	})
	if s.opts.StaticDir != "" {
		r.Static("/static", s.opts.StaticDir)
	}
}

func (s *Server) serveFile(c *gin.Context, name string) {
	p := filepath.Join(s.opts.StaticDir, name)
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": name + " is not available"})
		return
	}
	c.File(p)
}
