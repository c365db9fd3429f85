// ABOUTME: Service is the scan workflow layer between the app and the scan store
// ABOUTME: Turns analysis outcomes into scan records and answers closet/history queries

package closet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tagscan/internal/dedupe"
	"github.com/2389/tagscan/internal/store"
	"github.com/2389/tagscan/internal/tagapi"
)

// DefaultRecent is how many scans the home view previews
const DefaultRecent = 2

var (
	// ErrDuplicateCapture is returned when the same capture is recorded twice within the dedupe window
	ErrDuplicateCapture = errors.New("capture already recorded")

	// ErrInvalidView is returned by Browse for an unknown view
	ErrInvalidView = errors.New("invalid view")

	// ErrNoOutcome is returned by Record when neither a response nor an error is given
	ErrNoOutcome = errors.New("record needs a response or an error")

	// ErrNoAnalyzer is returned by Scan when the service has no analyzer
	ErrNoAnalyzer = errors.New("no analyzer configured")
)

// View selects which scans Browse shows
type View string

const (
	ViewCloset View = "closet" // only scans added to the closet
	ViewAll    View = "all"    // full scan history
)

// ParseView converts user input to a View
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case ViewCloset:
		return ViewCloset, nil
	case ViewAll, "history", "":
		return ViewAll, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
}

// Analyzer is the remote tag-analysis service
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (*tagapi.Response, error)
}

// Service records scans and serves the history and closet views.
type Service struct {
	store    store.Store
	analyzer Analyzer
	captures *dedupe.Cache
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithAnalyzer sets the analysis service used by Scan
func WithAnalyzer(a Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

// WithCaptureDedupe drops repeated submissions of one capture key
func WithCaptureDedupe(c *dedupe.Cache) Option {
	return func(s *Service) { s.captures = c }
}

// WithClock sets the time source for created_at
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets how scan ids are minted when the caller gives none
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// New creates a scan workflow service over st
func New(st store.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  st,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: logger.With("component", "closet"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordRequest describes one finished scan attempt
type RecordRequest struct {
	ID          string // optional; a uuid is generated when empty
	CaptureKey  string // optional; identifies the capture for de-duplication
	DisplayName string
	Category    string

	// Exactly one of Response or Err should be set.
	Response *tagapi.Response
	Err      error
}

// Record persists a scan attempt and returns its id.
// Successful responses store parsed and emissions; failures store the error
// code and an {error} payload. Storage errors are returned unchanged.
func (s *Service) Record(ctx context.Context, req RecordRequest) (string, error) {
	if req.Response == nil && req.Err == nil {
		return "", ErrNoOutcome
	}

	if s.captures != nil && s.captures.CheckAndMark(req.CaptureKey) {
		s.logger.Warn("dropping duplicate capture", "capture", req.CaptureKey)
		return "", fmt.Errorf("%w: %s", ErrDuplicateCapture, req.CaptureKey)
	}

	scan := s.buildScan(req)
	id, err := s.store.AddScan(ctx, scan)
	if err != nil {
		if s.captures != nil {
			s.captures.Forget(req.CaptureKey)
		}
		return "", fmt.Errorf("recording scan: %w", err)
	}

	s.logger.Info("recorded scan", "id", id, "success", scan.Success)
	return id, nil
}

func (s *Service) buildScan(req RecordRequest) *store.NewScan {
	id := req.ID
	if id == "" {
		id = s.newID()
	}

	scan := &store.NewScan{
		ID:          id,
		CreatedAt:   s.now().UnixMilli(),
		DisplayName: optional(req.DisplayName),
		Category:    optional(req.Category),
	}

	if req.Err != nil {
		apiErr := asAPIError(req.Err)
		scan.ErrorCode = optional(apiErr.Code)
		scan.Result = map[string]any{"error": apiErr}
		return scan
	}

	scan.Success = true
	scan.CO2eGrams = req.Response.Emissions.TotalGrams()
	scan.Result = map[string]any{
		"parsed":    req.Response.Parsed,
		"emissions": req.Response.Emissions,
	}
	return scan
}

// asAPIError keeps service errors as reported and files anything else as internal
func asAPIError(err error) *tagapi.APIError {
	var apiErr *tagapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &tagapi.APIError{Code: tagapi.CodeInternalError}
}

// ScanRequest is a captured tag image awaiting analysis
type ScanRequest struct {
	CaptureKey  string
	DisplayName string
	Category    string
	Image       []byte
}

// ScanResult is the outcome of Scan. Failure is set when analysis failed;
// the failed attempt is still recorded under ScanID.
type ScanResult struct {
	ScanID   string
	Response *tagapi.Response
	Failure  *tagapi.APIError
}

// Scan analyzes an image and records the outcome, successful or not.
// The returned error covers only recording problems.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if s.analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	var resp *tagapi.Response
	var analyzeErr error
	if len(req.Image) == 0 {
		analyzeErr = &tagapi.APIError{Code: tagapi.CodeMissingImage}
	} else {
		resp, analyzeErr = s.analyzer.Analyze(ctx, req.Image)
		if analyzeErr == nil && resp == nil {
			analyzeErr = &tagapi.APIError{Code: tagapi.CodeUpstreamError, Message: "empty response"}
		}
	}

	rec := RecordRequest{
		CaptureKey:  req.CaptureKey,
		DisplayName: req.DisplayName,
		Category:    req.Category,
	}
	result := &ScanResult{}
	if analyzeErr != nil {
		s.logger.Warn("tag analysis failed", "error", analyzeErr)
		rec.Err = analyzeErr
		result.Failure = asAPIError(analyzeErr)
	} else {
		rec.Response = resp
		result.Response = resp
	}

	id, err := s.Record(ctx, rec)
	if err != nil {
		return nil, err
	}
	result.ScanID = id
	return result, nil
}

// Browse returns what the closet screen shows: a search when query has
// non-space text, otherwise the plain list for the view.
func (s *Service) Browse(ctx context.Context, view View, query string) ([]*store.ScanRecord, error) {
	if view != ViewCloset && view != ViewAll {
		return nil, fmt.Errorf("%w: %q", ErrInvalidView, view)
	}

	if strings.TrimSpace(query) != "" {
		return s.store.SearchScans(ctx, query, view == ViewCloset, 0)
	}
	if view == ViewCloset {
		return s.store.ListClosetItems(ctx, 0, 0)
	}
	return s.store.ListScans(ctx, 0, 0)
}

// History pages through every scan, newest first
func (s *Service) History(ctx context.Context, limit, offset int) ([]*store.ScanRecord, error) {
	return s.store.ListScans(ctx, limit, offset)
}

// Recent returns the n newest scans for the home view
func (s *Service) Recent(ctx context.Context, n int) ([]*store.ScanRecord, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	return s.store.ListScans(ctx, n, 0)
}

// Get returns a scan, or nil if it does not exist
func (s *Service) Get(ctx context.Context, id string) (*store.ScanRecord, error) {
	return s.store.GetScanByID(ctx, id)
}

// SetInCloset adds a scan to or removes it from the closet
func (s *Service) SetInCloset(ctx context.Context, id string, inCloset bool) error {
	return s.store.ToggleClosetStatus(ctx, id, inCloset)
}

// Remove deletes the selected scans
func (s *Service) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.DeleteScans(ctx, ids); err != nil {
		return err
	}
	s.logger.Info("removed scans", "count", len(ids))
	return nil
}

// Clear deletes the whole scan history
func (s *Service) Clear(ctx context.Context) error {
	return s.store.ClearAllScans(ctx)
}

// Prune keeps only the keep most recent scans
func (s *Service) Prune(ctx context.Context, keep int) error {
	return s.store.PruneOldScans(ctx, keep)
}

// Counts returns the number of scans in history and in the closet
func (s *Service) Counts(ctx context.Context) (total, inCloset int, err error) {
	if total, err = s.store.CountScans(ctx, false); err != nil {
		return 0, 0, err
	}
	if inCloset, err = s.store.CountScans(ctx, true); err != nil {
		return 0, 0, err
	}
	return total, inCloset, nil
}

// NeedsOnboarding reports whether onboarding should be shown
func (s *Service) NeedsOnboarding(ctx context.Context) bool {
	return !s.store.HasSeenOnboarding(ctx)
}

// CompleteOnboarding records that onboarding was shown
func (s *Service) CompleteOnboarding(ctx context.Context) error {
	return s.store.MarkOnboardingComplete(ctx)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
