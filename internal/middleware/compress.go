package middleware

import (
	"compress/gzip"
	"strings"

	"github.com/gin-gonic/gin"
)

// CompressConfig represents compression configuration
type CompressConfig struct {
	Level     int
	MinLength int
	Types     []string
	SkipPaths []string
}

// DefaultCompressConfig compresses JSON bodies of 1KiB or more
func DefaultCompressConfig() CompressConfig {
	return CompressConfig{
		Level:     gzip.DefaultCompression,
		MinLength: 1024,
		Types:     []string{"application/json"},
	}
}

// gzipWriter decides on the first Write, once the handler has set the
// content type. Bodies written in one call below MinLength pass through.
type gzipWriter struct {
	gin.ResponseWriter
	config  *CompressConfig
	gz      *gzip.Writer
	decided bool
}

func (g *gzipWriter) decide(n int) {
	if g.decided {
		return
	}
	g.decided = true

	h := g.Header()
	if h.Get("Content-Encoding") != "" || n < g.config.MinLength {
		return
	}
	contentType := h.Get("Content-Type")
	for _, t := range g.config.Types {
		if strings.Contains(contentType, t) {
			gz, err := gzip.NewWriterLevel(g.ResponseWriter, g.config.Level)
			if err != nil {
				return
			}
			h.Set("Content-Encoding", "gzip")
			h.Add("Vary", "Accept-Encoding")
			h.Del("Content-Length")
			g.gz = gz
			return
		}
	}
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	g.decide(len(data))
	if g.gz == nil {
		return g.ResponseWriter.Write(data)
	}
	return g.gz.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

func (g *gzipWriter) close() {
	if g.gz != nil {
		_ = g.gz.Close()
	}
}

// Compress gzips matching responses for clients that accept it
func Compress(config CompressConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") || c.Request.Method == "HEAD" {
			c.Next()
			return
		}

		gw := &gzipWriter{ResponseWriter: c.Writer, config: &config}
		c.Writer = gw
		defer func() {
			gw.close()
			c.Writer = gw.ResponseWriter
		}()

		c.Next()
	}
}
