package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// handleVideo streams a catalog video. Range requests are answered with 206
// partial content.
func (s *Server) handleVideo(c *gin.Context) {
	name := c.Param("filename")
	path, ok := s.videos.Lookup(name)
	if !ok {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Error().Err(err).Str("video", name).Str("path", path).Msg("failed to open video")
		c.String(http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	c.Header("Content-Type", "video/mp4")
	c.Header("Accept-Ranges", "bytes")
	http.ServeContent(c.Writer, c.Request, stat.Name(), stat.ModTime(), f)
}
