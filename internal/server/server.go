package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/jumpman786/omcgill/internal/hub"
	"github.com/jumpman786/omcgill/internal/server/middleware"
	"github.com/jumpman786/omcgill/pkg/config"
	"github.com/jumpman786/omcgill/pkg/transport"
)

type App struct {
	logger *slog.Logger
	hub    *hub.Hub
	wg     sync.WaitGroup
	http   *http.Server
	config *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, h *hub.Hub, verifier middleware.TokenVerifier) *App {
	app := &App{
		logger: logger,
		hub:    h,
		config: cfg,
		ctx:    rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, verifier),
		),
	)

	app.http = &http.Server{
		Addr:    cfg.Server.ListenAddress,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			IdleTimeout:             a.config.Transport.IdleTimeout,
			MaxOutboundBufferFrames: a.config.Transport.MaxOutboundBufferFrames,
		},
		a.logger,
	)

	conn.SetOnMessageHandler(a.hub.HandleFrame)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Debug("Connection closed, running disconnect path",
			slog.String("connID", id.String()), slog.Any("reason", err))
		a.hub.Detach(id)
	})

	// The newest handshake for a user is authoritative; Attach replaces
	// any previous connection under the same UserID.
	a.hub.Attach(conn, reqMeta.UserID)

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Connection contexts descend from the root context, which is already
	// cancelled; wait for their goroutines to finish cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
