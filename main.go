package main

import (
	"codesync-server/core"
	"codesync-server/handlers/api/rooms"
	"codesync-server/handlers/static"
	"codesync-server/handlers/websocket"
	"codesync-server/metrics"
	"codesync-server/presence"
	"codesync-server/session"
	"codesync-server/stores"
	"codesync-server/stores/memory"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type config struct {
	corsOrigins []string
	staticDir   string
}

func allowOrigin(extra []string) func(r *http.Request, origin string) bool {
	return func(r *http.Request, origin string) bool {
		if origin == "" {
			return false
		}
		for _, o := range extra {
			if o == "*" || o == origin {
				return true
			}
		}

		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}

		switch parsed.Scheme {
		case "http", "https":
			switch parsed.Hostname() {
			case "localhost", "127.0.0.1", "::1":
				return true
			}
		}

		return false
	}
}

func setupRouter(cfg config, state rooms.RoomState, registry core.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin(cfg.corsOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", rooms.HandleListRooms(state, registry))
		r.Route("/{roomId}", func(r chi.Router) {
			r.Get("/", rooms.HandleGetRoom(state))
			r.Get("/activity", rooms.HandleListActivity(registry))
		})
	})

	if cfg.staticDir != "" {
		r.NotFound(static.Handler(os.DirFS(cfg.staticDir)))
		logrus.WithField("dir", cfg.staticDir).Info("Serving web client")
	}

	return r
}

func waitForShutdown(ioo *socketio.Server, registry core.Registry) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)
	if err := registry.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close registry")
	}
	os.Exit(0)
}

func defaultListenAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":5000"
}

func splitOrigins(v string) []string {
	var origins []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", defaultListenAddr(), "Set the server listen address")
	staticDir := flag.String("static", "", "Serve the built web client from this directory")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg := config{
		corsOrigins: splitOrigins(os.Getenv("CORS_ORIGINS")),
		staticDir:   *staticDir,
	}

	registry := stores.GetRegistry()
	ioo := websocket.NewServer(cfg.corsOrigins)
	router := session.NewRouter(memory.NewFileStateStore(), presence.NewDirectory(), registry, websocket.NewTransport(ioo))
	websocket.Bind(ioo, router)

	r := setupRouter(cfg, router, registry)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo, registry)
}
