package sampler

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/mem"
	"gonum.org/v1/gonum/stat"
)

// Health score deductions. The score starts at 100 and each finding
// subtracts from it; it never goes below zero.
const (
	slowKeyDeduction  = 15 // Per timing key whose p95 exceeds SlowThreshold
	slowKeyDeductCap  = 45
	errorDeductCap    = 30 // Errors deduct one point each, up to this cap
	memoryDeductCap   = 25
	minSamplesForSlow = 20 // Keys with fewer samples never count as slow
)

// Config holds sampler configuration.
type Config struct {
	ReservoirSize  int           // Timing samples retained per key (default: 256)
	ReportInterval time.Duration // Periodic report cadence, 0 disables
	SlowThreshold  time.Duration // p95 above this marks a key slow (default: 200ms)
	MemoryLimit    float64       // Used-memory percent above this is pressure (default: 85)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		ReservoirSize:  256,
		ReportInterval: 60 * time.Second,
		SlowThreshold:  200 * time.Millisecond,
		MemoryLimit:    85,
	}
}

// KeyStats summarizes the retained samples of one timing key.
// Durations are in milliseconds.
type KeyStats struct {
	Count int64   `json:"count"` // Total recorded, including evicted samples
	Min   float64 `json:"min_ms"`
	Max   float64 `json:"max_ms"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
}

// Report is one point-in-time snapshot of all telemetry.
type Report struct {
	Timestamp      time.Time           `json:"timestamp"`
	Timings        map[string]KeyStats `json:"timings"`
	Errors         map[string]int64    `json:"errors"`
	Renders        map[string]int64    `json:"renders"`
	MemUsedPercent float64             `json:"mem_used_percent"`
	Health         int                 `json:"health"` // 0-100
}

// Sink receives periodic reports.
type Sink interface {
	Report(Report) error
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithSink replaces the default log sink.
func WithSink(sink Sink) Option {
	return func(s *Sampler) { s.sink = sink }
}

// reservoir keeps a bounded uniform sample of observed values
// (algorithm R). seen counts every observation, retained or not.
type reservoir struct {
	samples []float64
	seen    int64
}

// Sampler collects timing, error, and render telemetry.
// All methods are safe for concurrent use and safe on a nil receiver,
// so call sites need no sampler presence checks.
type Sampler struct {
	cfg    Config
	logger *slog.Logger
	sink   Sink

	mu         sync.Mutex
	reservoirs map[string]*reservoir
	errors     map[string]int64
	renders    map[string]int64
	rng        *rand.Rand

	cron      *cron.Cron
	closeOnce sync.Once

	// Overridable for tests; reads host memory usage.
	memUsedPercent func() (float64, error)
}

// New creates a Sampler. logger may be nil.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ReservoirSize < 1 {
		cfg.ReservoirSize = def.ReservoirSize
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = def.SlowThreshold
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = def.MemoryLimit
	}

	s := &Sampler{
		cfg:        cfg,
		logger:     logger,
		reservoirs: make(map[string]*reservoir),
		errors:     make(map[string]int64),
		renders:    make(map[string]int64),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		memUsedPercent: func() (float64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.UsedPercent, nil
		},
	}
	s.sink = &logSink{logger: logger}

	for _, opt := range opts {
		opt(s)
	}

	if cfg.ReportInterval > 0 {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", cfg.ReportInterval), s.report)
		if err != nil {
			logger.Error("failed to schedule telemetry reports", "err", err)
		} else {
			s.cron.Start()
		}
	}

	return s
}

// RecordDuration adds one timing sample under key.
func (s *Sampler) RecordDuration(key string, d time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservoirs[key]
	if !ok {
		r = &reservoir{samples: make([]float64, 0, s.cfg.ReservoirSize)}
		s.reservoirs[key] = r
	}

	r.seen++
	v := float64(d.Microseconds()) / 1000
	if len(r.samples) < s.cfg.ReservoirSize {
		r.samples = append(r.samples, v)
		return
	}
	if j := s.rng.Int63n(r.seen); j < int64(s.cfg.ReservoirSize) {
		r.samples[j] = v
	}
}

// RecordError increments the error counter for key.
func (s *Sampler) RecordError(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[key]++
}

// RecordRender increments the render counter for key.
func (s *Sampler) RecordRender(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders[key]++
}

// Snapshot computes a Report from the current telemetry.
func (s *Sampler) Snapshot() Report {
	if s == nil {
		return Report{Health: 100, Timestamp: time.Now().UTC()}
	}

	s.mu.Lock()
	rep := Report{
		Timestamp: time.Now().UTC(),
		Timings:   make(map[string]KeyStats, len(s.reservoirs)),
		Errors:    make(map[string]int64, len(s.errors)),
		Renders:   make(map[string]int64, len(s.renders)),
	}
	for key, r := range s.reservoirs {
		rep.Timings[key] = summarize(r)
	}
	for key, n := range s.errors {
		rep.Errors[key] = n
	}
	for key, n := range s.renders {
		rep.Renders[key] = n
	}
	s.mu.Unlock()

	if used, err := s.memUsedPercent(); err == nil {
		rep.MemUsedPercent = used
	} else {
		s.logger.Debug("memory usage unavailable", "err", err)
	}

	rep.Health = s.score(rep)
	return rep
}

// Close stops the periodic reporter. Safe to call more than once.
func (s *Sampler) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
	})
}

func (s *Sampler) report() {
	rep := s.Snapshot()
	if err := s.sink.Report(rep); err != nil {
		s.logger.Warn("telemetry sink rejected report", "err", err)
	}
}

// score applies additive deductions to a perfect score of 100.
func (s *Sampler) score(rep Report) int {
	score := 100

	slowDeduct := 0
	slowMs := float64(s.cfg.SlowThreshold.Microseconds()) / 1000
	for _, ks := range rep.Timings {
		if ks.Count >= minSamplesForSlow && ks.P95 > slowMs {
			slowDeduct += slowKeyDeduction
		}
	}
	if slowDeduct > slowKeyDeductCap {
		slowDeduct = slowKeyDeductCap
	}
	score -= slowDeduct

	var totalErrors int64
	for _, n := range rep.Errors {
		totalErrors += n
	}
	if totalErrors > errorDeductCap {
		totalErrors = errorDeductCap
	}
	score -= int(totalErrors)

	if rep.MemUsedPercent > s.cfg.MemoryLimit {
		over := int(rep.MemUsedPercent - s.cfg.MemoryLimit)
		if over > memoryDeductCap {
			over = memoryDeductCap
		}
		score -= over
	}

	if score < 0 {
		score = 0
	}
	return score
}

// summarize computes KeyStats from a reservoir. Quantiles need sorted
// input, so it works on a copy.
func summarize(r *reservoir) KeyStats {
	ks := KeyStats{Count: r.seen}
	if len(r.samples) == 0 {
		return ks
	}

	sorted := make([]float64, len(r.samples))
	copy(sorted, r.samples)
	sort.Float64s(sorted)

	ks.Min = sorted[0]
	ks.Max = sorted[len(sorted)-1]
	ks.Mean = stat.Mean(sorted, nil)
	ks.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	ks.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return ks
}

// logSink writes reports to the structured log.
type logSink struct {
	logger *slog.Logger
}

func (l *logSink) Report(rep Report) error {
	l.logger.Info("telemetry report",
		"health", rep.Health,
		"timing_keys", len(rep.Timings),
		"error_keys", len(rep.Errors),
		"render_keys", len(rep.Renders),
		"mem_used_percent", rep.MemUsedPercent,
	)
	for key, ks := range rep.Timings {
		l.logger.Debug("timing key",
			"key", key,
			"count", ks.Count,
			"mean_ms", ks.Mean,
			"p50_ms", ks.P50,
			"p95_ms", ks.P95,
		)
	}
	return nil
}
