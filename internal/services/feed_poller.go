package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prudhvinik1/robotrelay/internal/clock"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
)

const (
	DefaultFeedBaseURL  = "https://io.adafruit.com/api/v2"
	defaultFeedTimeout  = 5 * time.Second
	defaultFeedCacheTTL = 10 * time.Second
)

// Feed keys understood by the poller. The config maps each to a broker feed name.
const (
	FeedUltrasonic   = "ultrasonic_cm"
	FeedIRLeft       = "ir_left"
	FeedIRCenter     = "ir_center"
	FeedIRRight      = "ir_right"
	FeedLineState    = "line_state"
	FeedCameraMotion = "camera_motion"
)

var ErrFeedsNotConfigured = errors.New("broker feeds not configured")

type FeedPollerConfig struct {
	BaseURL  string
	Username string
	Key      string
	Feeds    map[string]string
	CacheTTL time.Duration
}

// FeedPoller is the telemetry producer: it reads the latest value of every sensor feed from
// the broker and hands the resulting sample to the ingest path.
//
// The broker's free tier is rate limited, so values younger than CacheTTL are served from
// the cache, and a rate-limited or failed fetch falls back to the last cached value.
type FeedPoller struct {
	cfg    FeedPollerConfig
	client *http.Client
	cache  repositories.FeedCache
	ingest *IngestService
	clock  clock.Clock
	logger *slog.Logger
}

func NewFeedPoller(cfg FeedPollerConfig, client *http.Client, cache repositories.FeedCache, ingest *IngestService, clk clock.Clock, logger *slog.Logger) *FeedPoller {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFeedBaseURL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultFeedCacheTTL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFeedTimeout}
	}
	return &FeedPoller{cfg: cfg, client: client, cache: cache, ingest: ingest, clock: clk, logger: logger}
}

func (p *FeedPoller) Configured() bool {
	return p.cfg.Username != "" && p.cfg.Key != "" && len(p.cfg.Feeds) > 0
}

// Poll reads all feeds, saves a sample locally and returns the raw values. A failed local
// save is logged and does not fail the poll.
func (p *FeedPoller) Poll(ctx context.Context) (*models.LiveData, error) {
	if !p.Configured() {
		return nil, ErrFeedsNotConfigured
	}

	live := &models.LiveData{
		UltrasonicCM: p.latest(ctx, FeedUltrasonic),
		IRLeft:       p.latest(ctx, FeedIRLeft),
		IRCenter:     p.latest(ctx, FeedIRCenter),
		IRRight:      p.latest(ctx, FeedIRRight),
		LineState:    p.latest(ctx, FeedLineState),
		CameraMotion: p.latest(ctx, FeedCameraMotion),
		Timestamp:    p.clock.Now().Format(TimestampLayout),
	}

	sample := &models.SensorSample{
		Timestamp:    live.Timestamp,
		UltrasonicCM: parseFloat(live.UltrasonicCM),
		IRLeft:       parseInt(live.IRLeft),
		IRCenter:     parseInt(live.IRCenter),
		IRRight:      parseInt(live.IRRight),
		LineState:    nonEmpty(live.LineState),
	}
	if _, err := p.ingest.Ingest(ctx, sample); err != nil {
		p.logger.Warn("could not save polled sample", "error", err)
	}

	return live, nil
}

// latest returns the feed's current value, or nil when it is unknown.
func (p *FeedPoller) latest(ctx context.Context, feedKey string) *string {
	feedName := p.cfg.Feeds[feedKey]
	if feedName == "" {
		return nil
	}

	cached, err := p.cache.Get(ctx, feedKey)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		p.logger.Warn("feed cache read failed", "feed", feedKey, "error", err)
	}
	if cached != nil && p.clock.Now().Sub(cached.FetchedAt) < p.cfg.CacheTTL {
		return &cached.Value
	}

	value, err := p.fetch(ctx, feedName)
	if err != nil {
		p.logger.Warn("feed fetch failed", "feed", feedKey, "error", err)
		if cached != nil {
			return &cached.Value
		}
		return nil
	}
	if value == nil {
		return nil
	}

	entry := models.FeedEntry{Value: *value, FetchedAt: p.clock.Now()}
	if err := p.cache.Set(ctx, feedKey, entry); err != nil {
		p.logger.Warn("feed cache write failed", "feed", feedKey, "error", err)
	}
	return value
}

var errRateLimited = errors.New("rate limited by broker")

func (p *FeedPoller) fetch(ctx context.Context, feedName string) (*string, error) {
	endpoint := fmt.Sprintf("%s/%s/feeds/%s/data/last",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(p.cfg.Username), url.PathEscape(feedName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("X-AIO-Key", p.cfg.Key)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected feed status %d", resp.StatusCode)
	}

	var body struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}
	return body.Value, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func parseFloat(s *string) *float64 {
	if s = nonEmpty(s); s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt(s *string) *int {
	if s = nonEmpty(s); s == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	return &n
}
