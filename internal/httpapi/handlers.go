package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/seabridge/internal/config"
	"github.com/MimeLyc/seabridge/internal/document"
	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/internal/jobs"
	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/internal/sms"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"jobs_enabled": s.svc.JobsEnabled(),
		"watched_jobs": len(s.svc.WatchedJobs()),
	})
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req provider.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	res, err := s.svc.TranslateText(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTranslateDocument(c *gin.Context) {
	var req document.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	res, err := s.svc.TranslateDocument(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type smsSegmentsRequest struct {
	Text string `json:"text"`
	// TargetLanguage translates Text before segmenting when set.
	TargetLanguage string `json:"target_language,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	MaxLength      int    `json:"max_length,omitempty"`
}

type smsSegmentsResponse struct {
	Segments     []sms.Segment `json:"segments"`
	ProviderUsed provider.Tier `json:"provider_used,omitempty"`
}

func (s *Server) handleSmsSegments(c *gin.Context) {
	var req smsSegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}

	var resp smsSegmentsResponse
	text := req.Text
	if strings.TrimSpace(req.TargetLanguage) != "" {
		res, err := s.svc.TranslateText(c.Request.Context(), provider.Request{
			Content:        req.Text,
			TargetLanguage: req.TargetLanguage,
			SourceLanguage: req.SourceLanguage,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		text = res.Text
		resp.ProviderUsed = res.ProviderUsed
	}

	segments, err := s.svc.ChunkForSms(text, req.MaxLength)
	if err != nil {
		writeError(c, err)
		return
	}
	resp.Segments = segments
	if resp.Segments == nil {
		resp.Segments = []sms.Segment{}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListJobs(c *gin.Context) {
	ids := s.svc.WatchedJobs()
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"watched": ids})
}

// handleStartJob accepts a multipart upload with a "file" part and
// message_key, target_language and source_language fields.
func (s *Server) handleStartJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, errs.New(errs.PayloadTooLarge, "document exceeds upload limit"))
			return
		}
		badRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "failed to read file")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "failed to read file")
		return
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}

	res, err := s.svc.StartDocumentJob(c.Request.Context(), jobs.StartRequest{
		MessageKey:     c.PostForm("message_key"),
		TargetLanguage: c.PostForm("target_language"),
		SourceLanguage: c.PostForm("source_language"),
		Content:        content,
		MimeType:       mimeType,
		FileName:       fh.Filename,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	c.JSON(code, res)
}

func (s *Server) handleJobStatus(c *gin.Context) {
	job, err := s.svc.PollJobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleStopPolling(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.svc.Job(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":  id,
		"stopped": s.svc.StopPolling(id),
	})
}

// handleDownload returns the download link, or redirects to it when
// ?redirect=true.
func (s *Server) handleDownload(c *gin.Context) {
	url, err := s.svc.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, url)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": url})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	if s.settings == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "settings store is not configured"})
		return
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	if s.settings == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "settings store is not configured"})
		return
	}
	var req config.RuntimeSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, errs.Wrap(err, errs.Validation, "invalid settings"))
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(c, errs.Wrap(err, errs.Storage, "failed to save settings"))
		return
	}
	c.JSON(http.StatusOK, saved)
}
