package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	defense "github.com/jassus213/go-defense"
	zapadapter "github.com/jassus213/go-defense/adapters/zap"
	prommetrics "github.com/jassus213/go-defense/metrics/prometheus"
	"github.com/jassus213/go-defense/middleware"
	ginmw "github.com/jassus213/go-defense/middleware/gin"
)

var servePassword string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo HTTP server",
	Long: `Start an HTTP server with a POST /login endpoint guarded by the
configured defenses, and Prometheus metrics on /metrics.

Failed logins (server.count_status, 401 by default) are recorded for the
subject, which is the "username" form value or the client IP. Once a defense
fires, further logins are answered with 429 and its result.

Example:
  defensed serve --config defense.yaml --password secret
  curl -X POST -d username=alice -d password=wrong localhost:8080/login`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePassword, "password", "secret", "password accepted by the demo /login")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	observer := prommetrics.NewObserver(reg)

	e, err := setup(ctx, defense.WithObserver(observer))
	if err != nil {
		return err
	}
	defer e.close()

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(e, reg)

	srv := &http.Server{
		Addr:              e.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", e.cfg.Store.Type))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(e *env, reg *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	countStatus := e.cfg.Server.CountStatus
	router.POST("/login", ginmw.Defense(e.builder.Defense,
		middleware.WithTrack[string](e.builder.Tracked),
		middleware.WithKeyFunc[string](subjectKey),
		middleware.WithCountWhen[string](func(status int) bool { return status == countStatus }),
		middleware.WithBlocked[string](func(w http.ResponseWriter, r *http.Request, result string) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(gin.H{"error": result})
		}),
		middleware.WithLogger[string](zapadapter.New(e.logger)),
	), func(c *gin.Context) {
		if c.PostForm("password") != servePassword {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return router
}

// subjectKey identifies the login subject by username, falling back to the
// client IP.
func subjectKey(r *http.Request) (string, error) {
	if user := r.PostFormValue("username"); user != "" {
		return user, nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, nil
	}
	return host, nil
}
