package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/evaluation"
	"github.com/banshee-data/antispoofing.motion/internal/httputil"
	"github.com/banshee-data/antispoofing.motion/internal/measure"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/report"
	"github.com/banshee-data/antispoofing.motion/internal/store"
	"github.com/banshee-data/antispoofing.motion/internal/timeanalysis"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server answers analysis queries against a score store. Requests start
// from the server's default analysis options and override them with
// query parameters.
type Server struct {
	db       *store.DB
	defaults *config.AnalysisConfig
}

func NewServer(db *store.DB, defaults *config.AnalysisConfig) *Server {
	if defaults == nil {
		defaults = config.EmptyAnalysisConfig()
	}
	return &Server{db: db, defaults: defaults}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/time-analysis", s.showTimeAnalysis)
	mux.HandleFunc("/time-analysis", s.renderTimeAnalysis)
	return mux
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	runs, err := s.db.Runs(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to retrieve runs: "+err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

// requestConfig overlays query parameters on the server defaults.
func (s *Server) requestConfig(r *http.Request) (*config.AnalysisConfig, error) {
	o := config.EmptyAnalysisConfig()
	q := r.URL.Query()
	if v := q.Get("protocol"); v != "" {
		o.Protocol = &v
	}
	if v := q.Get("support"); v != "" {
		o.Support = &v
	}
	if v := q.Get("criterion"); v != "" {
		o.Criterion = &v
	}
	if v, ok, err := httputil.QueryBool(r, "running_average"); err != nil {
		return nil, err
	} else if ok {
		o.RunningAverage = &v
	}
	if v, ok, err := httputil.QueryInt(r, "window_size"); err != nil {
		return nil, err
	} else if ok {
		o.WindowSize = &v
	}
	if v, ok, err := httputil.QueryInt(r, "overlap"); err != nil {
		return nil, err
	} else if ok {
		o.Overlap = &v
	}
	cfg := s.defaults.Merge(o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// analyze runs the requested analysis. The threshold comes from the
// "threshold" parameter or is calibrated on the devel group.
func (s *Server) analyze(ctx context.Context, r *http.Request) (*config.AnalysisConfig, *timeanalysis.Analyzer, int, error) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}
	thr, ok, err := httputil.QueryFloat(r, "threshold")
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}
	src := evaluation.StoreScores{DB: s.db}
	if !ok {
		if thr, err = evaluation.Calibrate(ctx, s.db, src, cfg); err != nil {
			return nil, nil, statusFor(err), err
		}
	}
	a, err := evaluation.Analyze(ctx, s.db, src, cfg, thr)
	if err != nil {
		return nil, nil, statusFor(err), err
	}
	return cfg, a, http.StatusOK, nil
}

func statusFor(err error) int {
	if errors.Is(err, timeanalysis.ErrEmptyPopulation) || errors.Is(err, measure.ErrEmptyInput) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type entryView struct {
	Time            int      `json:"time"`
	FRR             float64  `json:"frr"`
	FAR             float64  `json:"far"`
	HTER            float64  `json:"hter"`
	FalseRejections []string `json:"false_rejections"`
	FalseAccepts    []string `json:"false_accepts"`
}

type analysisView struct {
	Title          string      `json:"title"`
	Threshold      float64     `json:"threshold"`
	RunningAverage bool        `json:"running_average"`
	Instantaneous  []entryView `json:"instantaneous"`
	Cumulative     []entryView `json:"cumulative"`
}

func entryViews(es []timeanalysis.Entry) []entryView {
	out := make([]entryView, len(es))
	for i, e := range es {
		out[i] = entryView{
			Time:            e.Time,
			FRR:             e.FRR,
			FAR:             e.FAR,
			HTER:            e.HTER,
			FalseRejections: e.FalseRejections,
			FalseAccepts:    e.FalseAccepts,
		}
	}
	return out
}

func title(cfg *config.AnalysisConfig) string {
	return report.Title(cfg.GetWindowSize(), cfg.GetOverlap(), cfg.GetProtocol(), cfg.GetSupport())
}

func (s *Server) showTimeAnalysis(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	cfg, a, status, err := s.analyze(r.Context(), r)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analysisView{
		Title:          title(cfg),
		Threshold:      a.Threshold(),
		RunningAverage: a.RunningAverage(),
		Instantaneous:  entryViews(a.Entries(timeanalysis.Instantaneous)),
		Cumulative:     entryViews(a.Entries(timeanalysis.Cumulative)),
	})
}

func (s *Server) renderTimeAnalysis(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	cfg, a, status, err := s.analyze(r.Context(), r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	inst, cum := a.Series(timeanalysis.Instantaneous), a.Series(timeanalysis.Cumulative)
	if err := report.RenderHTML(w, title(cfg), inst, cum); err != nil {
		monitoring.Logf("failed to render time analysis: %v", err)
	}
}
