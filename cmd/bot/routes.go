package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shinobicompass/bot/internal/bot"
	"github.com/shinobicompass/bot/internal/chat"
	"github.com/shinobicompass/bot/internal/dashboard"
)

// handleTimeout bounds one update's processing; the webhook itself returns
// immediately so the transport never retries a slow update.
const handleTimeout = 30 * time.Second

func newMux(b *bot.Bot, dash *dashboard.Handler, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", func(w http.ResponseWriter, r *http.Request) {
		m, err := chat.DecodeUpdate(r.Body)
		if errors.Is(err, chat.ErrNoMessage) {
			w.WriteHeader(http.StatusOK) // edits, reactions and the like
			return
		}
		if err != nil {
			log.Warn("undecodable update", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
			defer cancel()
			b.HandleMessage(ctx, m)
		}()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/v1/login", dash.Login)
	mux.HandleFunc("GET /api/v1/tasks", dash.ListTasks)
	mux.HandleFunc("GET /api/v1/users", dash.ListUsers)
	mux.HandleFunc("GET /api/v1/sudo", dash.ListSudo)

	return mux
}
