// mock-reasoner is a local stand-in for the reasoning service. It speaks
// just enough of the chat-completions protocol to drive the pipeline end to
// end with canned answers.
package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

const parsedAlert = `{
  "ticket_id": "ALR-861600",
  "channel": "Email",
  "module": "Container",
  "priority": "High",
  "entity_id": "CMAU0000020",
  "symptoms": ["duplicate", "advice", "stuck"],
  "error_code": "E102",
  "reporter": "Marina SVC"
}`

const rootCause = `{
  "cause": "Duplicate container advice blocks the new submission",
  "explanation": "A stale advice for the same container was never purged, so the follow-up submission is rejected as a duplicate.",
  "evidence_summary": ["container_service.log shows a duplicate-advice error for CMAU0000020"]
}`

const resolution = `{
  "steps": ["Purge the stale container advice", "Resubmit the advice", "Confirm acceptance with the customer"],
  "estimated_time": "15 minutes",
  "escalate": false,
  "escalate_to": ""
}`

const report = `## Summary
Duplicate container advice for CMAU0000020 blocked the new submission.

## Root Cause
A stale advice was never purged.

## Resolution Steps
1. Purge the stale container advice.
2. Resubmit the advice.

## Confidence
High; a matching past case carries a proven resolution.`

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/chat/completions", handleChat)
	mux.HandleFunc("/v1/chat/completions", handleChat)

	logger := log.New(log.Writer(), "reasoner-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var prompt string
	for _, m := range req.Messages {
		if m.Role == "user" {
			prompt = m.Content
		}
	}

	resp := chatResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
	}
	choice := chatChoice{FinishReason: "stop"}
	choice.Message.Role = "assistant"
	choice.Message.Content = replyFor(prompt)
	resp.Choices = []chatChoice{choice}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func replyFor(prompt string) string {
	switch {
	case strings.Contains(prompt, "Parse this support alert"):
		return parsedAlert
	case strings.Contains(prompt, "Determine the root cause"):
		return rootCause
	case strings.Contains(prompt, "Recommend resolution steps"):
		return resolution
	default:
		return report
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
