package http

import (
	"net/http"
)

type RouterConfig struct {
	Guilds     *GuildHandler
	Polls      *PollHandler
	Responses  *ResponseHandler
	Health     *HealthHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Guilds != nil {
		mux.HandleFunc("POST /guilds/{guild}/init", cfg.Guilds.Init)
		mux.HandleFunc("GET /guilds/{guild}/config", cfg.Guilds.GetConfig)
		mux.HandleFunc("PATCH /guilds/{guild}/config", cfg.Guilds.UpdateConfig)
		mux.HandleFunc("POST /guilds/{guild}/polls", cfg.Guilds.CreatePoll)
		mux.HandleFunc("GET /guilds/{guild}/timezones/{participant}", cfg.Guilds.GetTimezone)
		mux.HandleFunc("PUT /guilds/{guild}/timezones/{participant}", cfg.Guilds.SetTimezone)
		mux.HandleFunc("DELETE /guilds/{guild}/timezones/{participant}", cfg.Guilds.ClearTimezone)
	}

	if cfg.Polls != nil {
		mux.HandleFunc("GET /channels/{channel}/poll", cfg.Polls.ActiveStatus)
		mux.HandleFunc("POST /channels/{channel}/poll/close", cfg.Polls.CloseActive)
		mux.HandleFunc("POST /polls/purge", cfg.Polls.Purge)
		mux.HandleFunc("GET /polls/{poll}", cfg.Polls.Status)
		mux.HandleFunc("POST /polls/{poll}/close", cfg.Polls.Close)
		mux.HandleFunc("POST /polls/{poll}/remind", cfg.Polls.Remind)
	}

	if cfg.Responses != nil {
		mux.HandleFunc("GET /polls/{poll}/responses", cfg.Responses.List)
		mux.HandleFunc("PUT /polls/{poll}/responses/{participant}", cfg.Responses.Submit)
		mux.HandleFunc("DELETE /polls/{poll}/responses/{participant}", cfg.Responses.Withdraw)
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /healthz", cfg.Health.Check)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
