package server

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sync"
)

// CallbackResult carries the frontend URL the gateway redirected the browser to.
type CallbackResult struct {
	URL *url.URL
	err error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler stands in for the frontend during CLI login: it captures the first
// /callback or /error redirect from the gateway and publishes it on a channel.
type CallbackHandler struct {
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a handler that accepts exactly one redirect.
func NewCallbackHandler() *CallbackHandler {
	return &CallbackHandler{resultChan: make(chan CallbackResult, 1)}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback", "/error"}
}

// ServeHTTP records the redirect and shows a page telling the user to go back to the terminal.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	captured := *r.URL
	h.Send(CallbackResult{URL: &captured})

	title, detail := "Authorization Successful", "You can close this window and return to the terminal."
	status := http.StatusOK
	if r.URL.Path == "/error" {
		title = "Authorization Failed"
		detail = "Login failed: " + r.URL.Query().Get("message")
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, callbackPage, html.EscapeString(title), html.EscapeString(title), html.EscapeString(detail))
}

// Send sends the result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Fail publishes err as the result, e.g. when the listener stops before a redirect arrives.
func (h *CallbackHandler) Fail(err error) {
	h.Send(CallbackResult{err: err})
}

// Result returns the result channel. It receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

const callbackPage = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`
