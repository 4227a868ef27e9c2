package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"instalytics/pkg/aggregator"
	"instalytics/pkg/errors"
	"instalytics/pkg/instagram"
	"instalytics/pkg/response"
)

const (
	compareExample = "/api/compare?users=cristiano,messi,neymar"
	readyTimeout   = 2 * time.Second

	// JavaScript Date.toISOString layout
	isoMillis = "2006-01-02T15:04:05.000Z"
)

// handleParam validates the :handle path segment, answering 400 when it
// cannot be an Instagram username
func (s *Server) handleParam(c *gin.Context) (string, bool) {
	handle, ok := instagram.NormalizeHandle(c.Param("handle"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username"})
		return "", false
	}
	return handle, true
}

func (s *Server) getProfile(c *gin.Context) {
	handle, ok := s.handleParam(c)
	if !ok {
		return
	}

	r, err := s.pipeline.Profile(c.Request.Context(), handle)
	if err != nil {
		s.pipelineError(c, handle, err, "Failed to fetch profile data")
		return
	}

	setCacheHeaders(c, s.cfg.Cache.TTL)
	c.JSON(http.StatusOK, response.Profile(r.Profile, r.Source, s.now()))
}

func (s *Server) refreshProfile(c *gin.Context) {
	handle, ok := s.handleParam(c)
	if !ok {
		return
	}

	r, err := s.pipeline.Refresh(c.Request.Context(), handle)
	if err != nil {
		s.pipelineError(c, handle, err, "Failed to refresh profile")
		return
	}

	c.JSON(http.StatusOK, response.Profile(r.Profile, r.Source, s.now()))
}

func (s *Server) getPosts(c *gin.Context) {
	handle, ok := s.handleParam(c)
	if !ok {
		return
	}

	p, err := s.pipeline.Posts(c.Request.Context(), handle)
	if err != nil {
		if errors.Is(err, errors.ErrorTypeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":      "Profile not cached. Please fetch profile first.",
				"suggestion": "GET /api/profile/" + handle,
			})
			return
		}
		s.pipelineError(c, handle, err, "Failed to fetch posts data")
		return
	}

	setCacheHeaders(c, s.cfg.Cache.TTL)
	c.JSON(http.StatusOK, response.Posts(p))
}

func (s *Server) listProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, response.Listing(s.pipeline.List(c.Request.Context())))
}

func (s *Server) deleteProfile(c *gin.Context) {
	handle, ok := s.handleParam(c)
	if !ok {
		return
	}

	removed, err := s.pipeline.Invalidate(c.Request.Context(), handle)
	if err != nil {
		s.pipelineError(c, handle, err, "Failed to delete profile")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not cached", "username": handle})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile removed from cache", "username": handle})
}

func (s *Server) compare(c *gin.Context) {
	raw := c.Query("users")
	if strings.TrimSpace(raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Please provide usernames to compare",
			"example": compareExample,
		})
		return
	}

	var entries []string
	for _, h := range aggregator.SplitHandles(raw) {
		entries = append(entries, instagram.SanitizeUsername(strings.TrimSpace(h)))
	}

	// only the entries that survive the cap are validated
	handles := aggregator.Distinct(entries, s.cfg.Compare.MaxProfiles)
	for _, handle := range handles {
		if !instagram.IsValidUsername(handle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username", "username": handle})
			return
		}
	}

	if len(handles) < s.cfg.Compare.MinProfiles {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    fmt.Sprintf("Please provide at least %d usernames to compare", s.cfg.Compare.MinProfiles),
			"provided": handles,
		})
		return
	}

	cmp, err := s.pipeline.Compare(c.Request.Context(), handles)
	if err != nil {
		var partial *errors.PartialComparisonError
		if stderrors.As(err, &partial) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":              "Some profiles could not be fetched",
				"failedProfiles":     partial.Failed,
				"successfulProfiles": partial.Succeeded,
				"reason":             partial.Reason,
			})
			return
		}
		s.pipelineError(c, strings.Join(handles, ","), err, "Failed to compare profiles")
		return
	}

	c.JSON(http.StatusOK, response.Comparison(cmp.Results, s.now()))
}

// pipelineError answers a failed pipeline call. Unknown handles get 404;
// everything else is reported as a server error with the cause attached.
func (s *Server) pipelineError(c *gin.Context, handle string, err error, message string) {
	status := errors.HTTPStatus(err)

	fields := map[string]interface{}{
		"handle":     handle,
		"error_type": errors.TypeOf(err),
		"request_id": RequestID(c),
	}

	switch status {
	case http.StatusNotFound:
		s.logger.InfoWithFields("Profile not found", fields)
		c.JSON(status, gin.H{"error": "Profile not found", "username": handle})
	case http.StatusBadRequest:
		c.JSON(status, gin.H{"error": err.Error()})
	default:
		s.logger.WithError(err).ErrorWithFields(message, fields)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message, "message": err.Error()})
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": s.now().UTC().Format(isoMillis),
	})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "not_ready",
			"store_error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "store": "ok"})
}
