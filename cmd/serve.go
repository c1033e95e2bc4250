package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"chatwidget-cli/cmd/utils"
	"chatwidget-cli/internal/chat"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveAddr      string
	serveFailFirst int
	serveQuiet     bool
)

// serveCmd runs a local echo endpoint for developing against.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local development chat endpoint",
	Long: `Run a local /chat endpoint that answers every message with an echo.

Examples:
  # Listen on the default address
  cw serve

  # Fail the first three requests to watch the retry loop work
  cw serve --fail-first 3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveFailFirst < 0 {
			return fmt.Errorf("--fail-first must be >= 0, got %d", serveFailFirst)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ln, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", serveAddr, err)
		}
		responder := newDevResponder(serveFailFirst, utils.Logger())
		OutputSuccess("Serving chat endpoint on http://%s/chat", ln.Addr())
		if serveFailFirst > 0 {
			OutputInfo("The first %d requests will fail with 503", serveFailFirst)
		}
		return runDevServer(ctx, ln, responder.Router())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:5000", "Address to listen on")
	serveCmd.Flags().IntVar(&serveFailFirst, "fail-first", 0, "Answer the first N chat requests with 503")
	serveCmd.Flags().BoolVar(&serveQuiet, "quiet", false, "Do not print a line per request")

	rootCmd.AddCommand(serveCmd)
}

// devResponder answers POST /chat with "You said: <message>".
type devResponder struct {
	failFirst int64
	served    atomic.Int64
	logger    *zap.Logger
}

func newDevResponder(failFirst int, logger *zap.Logger) *devResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &devResponder{failFirst: int64(failFirst), logger: logger}
}

// Router registers the chat and health endpoints.
func (d *devResponder) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware, d.accessLog)
	r.HandleFunc("/chat", d.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/chat", handlePreflight).Methods(http.MethodOptions)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func (d *devResponder) handleChat(w http.ResponseWriter, r *http.Request) {
	n := d.served.Add(1)
	if n <= d.failFirst {
		d.logger.Debug("failing request on purpose", zap.Int64("request", n), zap.Int64("fail_first", d.failFirst))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Service temporarily unavailable"})
		return
	}

	var req struct {
		Message *string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing message"})
		return
	}

	reply := "You said: " + *req.Message
	writeJSON(w, http.StatusOK, chat.ChatResponse{Response: &reply})
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// corsMiddleware allows any origin, as a browser-hosted widget needs.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (d *devResponder) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		d.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
		if !serveQuiet {
			OutputInfoPlain("%s %s %d %s", r.Method, r.URL.Path, rec.status, elapsed.Round(time.Microsecond))
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// runDevServer serves h on ln until ctx is done, then shuts down gracefully.
func runDevServer(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	OutputInfo("Chat endpoint stopped")
	return nil
}
