package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/pkg/log"
)

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.UnsupportedLanguagePair:
		return http.StatusUnprocessableEntity
	case errs.PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case errs.JobNotFound:
		return http.StatusNotFound
	case errs.DownloadExpired:
		return http.StatusGone
	case errs.ProviderUnavailable:
		return http.StatusServiceUnavailable
	case errs.PartialBatchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error","kind"}. Validation errors also carry
// the underlying detail.
func writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		log.Error("%s %s failed: %v request_id=%s", c.Request.Method, c.Request.URL.Path, err, c.GetString("request_id"))
	}

	body := gin.H{
		"error": errs.UserMessage(err),
		"kind":  kind.String(),
	}
	if kind == errs.Validation || kind == errs.UnsupportedLanguagePair {
		body["detail"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, errs.New(errs.Validation, msg))
}
