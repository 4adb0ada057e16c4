package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/baxromumarov/searchhub/internal/httpx"
)

const (
	ErrorTimeout   = "timeout"
	ErrorNetwork   = "network"
	ErrorParsing   = "parsing"
	ErrorBlocked   = "blocked"
	ErrorAI        = "ai"
	ErrorRateLimit = "rate_limit"
	ErrorStore     = "store"
	ErrorCache     = "cache"
	ErrorAuth      = "auth"
	ErrorUnknown   = "unknown"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	if errors.Is(err, httpx.ErrBlocked) || errors.Is(err, colly.ErrRobotsTxtBlocked) {
		return ErrorBlocked
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		case fe.Status == http.StatusForbidden:
			return ErrorBlocked
		case fe.Status == 0 && isTimeout(fe.Err):
			return ErrorTimeout
		case fe.Status >= 200 && fe.Status < 300:
			// Fetched fine; failed afterwards.
			return ErrorParsing
		default:
			return ErrorNetwork
		}
	}
	if isTimeout(err) {
		return ErrorTimeout
	}
	return ErrorUnknown
}

func ClassifySourceError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse failed") ||
		strings.Contains(msg, "decode") ||
		strings.Contains(msg, "unmarshal") ||
		strings.Contains(msg, "invalid character") {
		return ErrorParsing
	}
	return ErrorNetwork
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
