package api

import (
	"log/slog"
	"net/http"
)

// health handles GET / for uptime probes and the web client's startup check.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "책첵 API 서버가 정상 작동 중입니다.",
	}, slog.Default())
}
