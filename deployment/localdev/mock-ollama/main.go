package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type modelTag struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

var cannedAnswers = []struct {
	keywords []string
	answer   string
}{
	{[]string{"wifi", "network", "vpn", "internet"}, "Toggle Wi-Fi off and on, then restart your laptop. If other people nearby are affected, the office network may be down. Is everyone around you offline too?"},
	{[]string{"password", "login", "locked"}, "Wait fifteen minutes for the lockout to clear, then try again with Caps Lock off. Were you able to sign in?"},
	{[]string{"printer", "print"}, "Turn the printer off for thirty seconds, check the paper tray, and resend the job. Did the page print?"},
	{[]string{"laptop", "turn on", "power"}, "Hold the power button for fifteen seconds, then plug in the charger and try again. Does the charging light come on?"},
}

func main() {
	addr := flag.String("addr", "127.0.0.1:11434", "listen address")
	models := flag.String("models", "phi,mistral", "comma separated model names to advertise")
	delay := flag.Duration("delay", 300*time.Millisecond, "simulated generation latency")
	flag.Parse()

	known := make(map[string]bool)
	var tags []modelTag
	for _, name := range strings.Split(*models, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		known[name] = true
		tags = append(tags, modelTag{Name: name + ":latest", ModifiedAt: time.Now().Add(-24 * time.Hour), Size: 1_600_000_000})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": tags})
	})

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if !known[strings.TrimSuffix(req.Model, ":latest")] {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "model '" + req.Model + "' not found, try pulling it first"})
			return
		}

		select {
		case <-time.After(*delay):
		case <-r.Context().Done():
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"model":      req.Model,
			"created_at": time.Now().UTC(),
			"response":   answerFor(req.Prompt),
			"done":       true,
		})
	})

	logger := log.New(log.Writer(), "ollama-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    *addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// answerFor picks a canned reply from the user's part of the prompt.
func answerFor(prompt string) string {
	question := prompt
	if idx := strings.LastIndex(prompt, "User:"); idx >= 0 {
		question = prompt[idx:]
	}
	question = strings.ToLower(question)
	for _, canned := range cannedAnswers {
		for _, kw := range canned.keywords {
			if strings.Contains(question, kw) {
				return canned.answer
			}
		}
	}
	return "Please restart the affected application and try again. Did that resolve the problem?"
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
