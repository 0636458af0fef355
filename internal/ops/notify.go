package ops

import (
	"log"
	"net/http"
	"time"
)

// BuildHook triggers the external static-site build after catalog writes.
// Notify is fire-and-forget: the mutation's response is computed before the
// call is scheduled, and the hook's outcome never reaches the caller. The
// source swallowed failures entirely; here they are at least logged.
type BuildHook struct {
	url    string
	client *http.Client
}

func NewBuildHook(url string) *BuildHook {
	return &BuildHook{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *BuildHook) Notify() {
	if h == nil || h.url == "" {
		return
	}
	go func() {
		resp, err := h.client.Post(h.url, "application/json", nil)
		if err != nil {
			log.Printf("build hook failed: %v", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("build hook returned status %d", resp.StatusCode)
		}
	}()
}
