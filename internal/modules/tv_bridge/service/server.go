package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"
	dispatchsvc "parity_bot/internal/modules/dispatch/service"
	"parity_bot/internal/modules/metrics"
	tgsvc "parity_bot/internal/modules/telegram/service"
	"parity_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// Server — webhook-мост: принимает чужое решение о входе и проталкивает его
// в диспетчер как готовый сигнал, минуя движок. Вся валидация — здесь,
// дальше пейлоад уже не проверяется.
type Server struct {
	cfg        *config.Config
	disp       *dispatchsvc.Dispatcher
	m          *metrics.Metrics
	n          *tgsvc.Notifier
	expectedTF string

	srv *http.Server
}

func NewServer(cfg *config.Config, disp *dispatchsvc.Dispatcher, m *metrics.Metrics, n *tgsvc.Notifier) *Server {
	s := &Server{
		cfg:        cfg,
		disp:       disp,
		m:          m,
		n:          n,
		expectedTF: cfg.ExpectedTF(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.TVBridge.Path, s.handle)
	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.TVBridge.Host, cfg.TVBridge.Port),
		Handler: mux,
	}
	return s
}

func (s *Server) Start() {
	logger.Info("tv bridge listening on http://%s%s", s.srv.Addr, s.cfg.TVBridge.Path)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("tv bridge server: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler — для тестов через httptest.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.reject(w, r, "method_not_allowed", http.StatusMethodNotAllowed, nil, nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.reject(w, r, "invalid_json", http.StatusBadRequest, nil, nil)
		return
	}
	var decoded any
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		s.reject(w, r, "invalid_json", http.StatusBadRequest, nil, nil)
		return
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		s.reject(w, r, "invalid_payload", http.StatusBadRequest, nil, nil)
		return
	}

	secret := sval(payload, "secret")
	if secret == "" || secret != s.cfg.TVBridge.Secret {
		s.reject(w, r, "bad_secret", http.StatusUnauthorized, payload, nil)
		return
	}

	side := strings.ToUpper(sval(payload, "side"))
	if side != string(models.SideLong) {
		s.reject(w, r, "side_not_supported", http.StatusBadRequest, payload, nil)
		return
	}

	tf := sval(payload, "tf")
	if s.cfg.TVBridge.RequireTFMatch && s.expectedTF != "" {
		if tf != "" && tf != s.expectedTF {
			s.reject(w, r, "tf_mismatch", http.StatusBadRequest, payload,
				map[string]any{"got": tf, "expected": s.expectedTF})
			return
		}
		if tf == "" {
			s.reject(w, r, "missing_tf", http.StatusBadRequest, payload, nil)
			return
		}
	}

	entry, hasEntry := fval(payload, "entry_price")
	if !hasEntry {
		entry, _ = fval(payload, "price")
	}
	confirm, hasConfirm := ival(payload, "confirm_time_ms")

	sigTF := tf
	if sigTF == "" {
		sigTF = s.cfg.Timeframe
	}
	sig := models.Signal{
		Symbol:     sval(payload, "symbol"),
		Timeframe:  sigTF,
		Side:       models.SideLong,
		Source:     models.SourceTV,
		EntryPrice: entry,
		Reason:     "tv_webhook",
		CreatedAt:  time.Now().UTC(),
	}
	if hasConfirm {
		sig.ConfirmTimeMs = confirm
		sig.BarCloseMs = confirm + 1
	}

	logger.Info("TV SIGNAL LONG symbol=%s entry=%v tf=%s confirm_time_ms=%d",
		sig.Symbol, entry, tf, confirm)
	s.disp.Submit(r.Context(), sig)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, reason string, status int, payload, extra map[string]any) {
	s.m.RejectsTotal.WithLabelValues(reason).Inc()
	logger.Warn("webhook reject reason=%s ip=%s", reason, remoteIP(r))

	if s.n != nil && s.cfg.Telegram.NotifyRejects {
		var parts []string
		for _, k := range []string{"symbol", "side", "tf", "confirm_time_ms", "entry_price", "price"} {
			if v, ok := payload[k]; ok {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
		}
		suffix := ""
		if len(parts) > 0 {
			suffix = " payload=" + strings.Join(parts, ",")
		}
		s.n.SendThrottledF(r.Context(), "reject:"+reason,
			"REJECT reason=%s ip=%s%s", reason, remoteIP(r), suffix)
	}

	body := map[string]any{"ok": false, "error": reason}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	data, err := sonic.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func remoteIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func sval(p map[string]any, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// fval принимает числа и числа-строки: TV шлёт и так, и так.
func fval(p map[string]any, key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func ival(p map[string]any, key string) (int64, bool) {
	f, ok := fval(p, key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
