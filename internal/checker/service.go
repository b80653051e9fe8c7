package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-checker/internal/lottery"
	"github.com/zombor/invoice-checker/internal/metrics"
	"github.com/zombor/invoice-checker/internal/scanning"
	"github.com/zombor/invoice-checker/internal/source"
	"github.com/zombor/invoice-checker/internal/voice"
)

var (
	ErrSelectionOutOfRange = errors.New("selected period does not exist")
	ErrInvalidKey          = errors.New("key must be a digit or back")
	ErrInvalidPending      = errors.New("pending receipt number must be 3 digits")
	ErrScannerUnavailable  = errors.New("no invoice scanner configured")
	ErrUnrecognizedQR      = errors.New("qr code does not contain an invoice number")
)

// KeyBack deletes the last keypad digit
const KeyBack = "back"

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// CloudSource provides the full winning-number list
type CloudSource interface {
	Fetch(ctx context.Context) ([]lottery.WinningNumberSet, error)
}

// TermSource provides the winning numbers of one term
type TermSource interface {
	FetchTerm(ctx context.Context, term string) (*lottery.WinningNumberSet, error)
}

// Sources groups where winning numbers come from. Official is optional.
type Sources struct {
	Cloud    CloudSource
	Official TermSource
}

// RefreshOutcome reports what a refresh changed
type RefreshOutcome struct {
	Source  string `json:"source"`
	Latest  string `json:"latest"`
	Updated bool   `json:"updated"`
}

// ScanOutcome is an OCR read and the check it led to
type ScanOutcome struct {
	Number string              `json:"number"`
	Period string              `json:"period,omitempty"`
	Result lottery.PrizeResult `json:"result"`
}

// Service orchestrates checks over the known periods and keeps the user's records.
// The known list is only ever replaced wholesale; checks run on snapshots of it.
type Service struct {
	db          DB
	scanner     scanning.Scanner
	sources     Sources
	notifier    Notifier
	idGenerator IDGenerator
	timeSource  TimeSource

	// refreshMu serializes Refresh and Load so a read-modify-write of the
	// known list is never interleaved with another replacement
	refreshMu sync.Mutex

	mu             sync.RWMutex
	known          []lottery.WinningNumberSet
	selection      lottery.Selection
	buffer         string
	alertedPending bool
}

// NewService creates a new Service with default ID generator and time source.
// scanner may be nil when OCR is not configured.
func NewService(db DB, scanner scanning.Scanner, sources Sources, notifier Notifier) *Service {
	return NewServiceWithDeps(db, scanner, sources, notifier, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, sources Sources, notifier Notifier, idGen IDGenerator, timeSrc TimeSource) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		sources:     sources,
		notifier:    notifier,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Load restores the known periods from the database, falling back to the bundled seed
func (s *Service) Load() error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	sets, err := s.db.LoadWinningSets()
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		slog.Info("No stored winning numbers, using seed data")
		sets = source.Seed()
	}
	s.ReplaceSets(sets)
	return nil
}

// ReplaceSets swaps the known-period list wholesale
func (s *Service) ReplaceSets(sets []lottery.WinningNumberSet) {
	sets = slices.Clone(sets)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.known = sets
	if s.selection != lottery.MergeAll && int(s.selection) >= len(sets) {
		s.selection = 0
	}
	metrics.KnownPeriods.Set(float64(len(sets)))
}

// KnownSets returns the current known-period list, most recent first
func (s *Service) KnownSets() []lottery.WinningNumberSet {
	known, _ := s.snapshot()
	return slices.Clone(known)
}

// Selection returns the current period selection
func (s *Service) Selection() lottery.Selection {
	_, sel := s.snapshot()
	return sel
}

// SetSelection switches the period checks run against and clears the keypad
func (s *Service) SetSelection(sel lottery.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel != lottery.MergeAll && (sel < 0 || int(sel) >= len(s.known)) {
		return ErrSelectionOutOfRange
	}
	s.selection = sel
	s.buffer = ""
	return nil
}

func (s *Service) snapshot() ([]lottery.WinningNumberSet, lottery.Selection) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.known, s.selection
}

// NextPeriods returns the two upcoming, not yet drawn, period labels
func (s *Service) NextPeriods() []string {
	known, _ := s.snapshot()
	if len(known) == 0 {
		return slices.Clone(lottery.PendingPlaceholders)
	}
	return lottery.NextPeriodLabels(known[0].Period, 2)
}

// Refresh pulls the latest winning numbers: the cloud list replaces the known
// periods, otherwise the official API's latest term is merged in by period.
// The known list changes only once it has been persisted.
func (s *Service) Refresh(ctx context.Context) (*RefreshOutcome, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	sets, err := s.sources.Cloud.Fetch(ctx)
	if err == nil && len(sets) == 0 {
		err = errors.New("cloud returned no periods")
	}
	if err == nil {
		metrics.RefreshTotal.WithLabelValues("cloud", "ok").Inc()
		if err := s.commit(sets); err != nil {
			return nil, err
		}
		slog.Info("Synced winning numbers from cloud", "latest", sets[0].Period, "periods", len(sets))
		return &RefreshOutcome{Source: "cloud", Latest: sets[0].Period, Updated: true}, nil
	}
	metrics.RefreshTotal.WithLabelValues("cloud", "error").Inc()
	slog.Warn("Cloud refresh failed", "error", err)

	if s.sources.Official == nil {
		return nil, fmt.Errorf("fetching cloud data: %w", err)
	}

	term, period := source.LatestDrawnTerm(s.timeSource.Now())
	set, err := s.sources.Official.FetchTerm(ctx, term)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("official", "error").Inc()
		return nil, fmt.Errorf("fetching term %s: %w", term, err)
	}
	metrics.RefreshTotal.WithLabelValues("official", "ok").Inc()

	known, _ := s.snapshot()
	if existing, ok := lottery.FindByPeriod(known, set.Period); ok && reflect.DeepEqual(existing, *set) {
		slog.Info("Winning numbers already current", "period", period)
		s.resetPendingAlerts()
		return &RefreshOutcome{Source: "official", Latest: set.Period, Updated: false}, nil
	}

	if err := s.commit(lottery.UpsertByPeriod(known, *set)); err != nil {
		return nil, err
	}
	slog.Info("Merged winning numbers from official API", "term", term, "period", set.Period)
	return &RefreshOutcome{Source: "official", Latest: set.Period, Updated: true}, nil
}

func (s *Service) commit(sets []lottery.WinningNumberSet) error {
	if err := s.db.SaveWinningSets(sets); err != nil {
		return fmt.Errorf("saving winning sets: %w", err)
	}
	s.ReplaceSets(sets)
	s.resetPendingAlerts()
	return nil
}

func (s *Service) resetPendingAlerts() {
	s.mu.Lock()
	s.alertedPending = false
	s.mu.Unlock()
}

// CheckNumber checks a full invoice number against the current selection and
// records it when it wins
func (s *Service) CheckNumber(number string) (lottery.PrizeResult, error) {
	known, sel := s.snapshot()
	return s.check(number, sel, known)
}

func (s *Service) check(number string, sel lottery.Selection, known []lottery.WinningNumberSet) (lottery.PrizeResult, error) {
	result := lottery.CheckAgainstSelection(number, sel, known)
	metrics.ChecksTotal.WithLabelValues(metrics.Mode(sel == lottery.MergeAll), string(result.Tier)).Inc()
	s.notifier.CheckResult(number, result)

	if !result.IsWinner {
		return result, nil
	}
	record := &WinningRecord{
		ID:        s.idGenerator.Generate(),
		Number:    number,
		Period:    result.Period,
		Tier:      result.Tier,
		Amount:    result.Tier.Amount(),
		CreatedAt: s.timeSource.Now(),
	}
	if err := s.db.SaveWinningRecord(record); err != nil {
		return result, fmt.Errorf("saving winning record: %w", err)
	}
	return result, nil
}

// QuickCheck checks a 3-digit suffix against the current selection
func (s *Service) QuickCheck(suffix string) lottery.QuickCheckResult {
	known, sel := s.snapshot()
	result := lottery.CheckAgainstSelection3(suffix, sel, known)
	metrics.QuickChecksTotal.WithLabelValues(metrics.Mode(sel == lottery.MergeAll), fmt.Sprint(result.Potential)).Inc()
	s.notifier.QuickResult(suffix, result)
	return result
}

// PressKey feeds one keypad key into the 3-digit buffer. A digit pressed on a
// full buffer starts a new number. The quick check runs once 3 digits are in.
func (s *Service) PressKey(key string) (string, *lottery.QuickCheckResult, error) {
	s.mu.Lock()
	switch {
	case key == KeyBack:
		if len(s.buffer) > 0 {
			s.buffer = s.buffer[:len(s.buffer)-1]
		}
	case len(key) == 1 && key[0] >= '0' && key[0] <= '9':
		s.buffer = appendDigit(s.buffer, key[0])
	default:
		s.mu.Unlock()
		return "", nil, ErrInvalidKey
	}
	buffer := s.buffer
	s.mu.Unlock()

	if key == KeyBack || len(buffer) != 3 {
		return buffer, nil, nil
	}
	result := s.QuickCheck(buffer)
	return buffer, &result, nil
}

// VoiceInput feeds the digits of a speech transcript into the keypad buffer
func (s *Service) VoiceInput(text string) (string, *lottery.QuickCheckResult) {
	digits := voice.NormalizeDigits(text)

	s.mu.Lock()
	for i := 0; i < len(digits); i++ {
		s.buffer = appendDigit(s.buffer, digits[i])
	}
	buffer := s.buffer
	s.mu.Unlock()

	if digits == "" || len(buffer) != 3 {
		return buffer, nil
	}
	result := s.QuickCheck(buffer)
	return buffer, &result
}

func appendDigit(buffer string, d byte) string {
	if len(buffer) >= 3 {
		return string(d)
	}
	return buffer + string(d)
}

// ScanInvoice reads an invoice image and checks the number it carries. When the
// invoice shows a known period the check runs against that period only.
func (s *Service) ScanInvoice(filename string, data []byte, contentType string) (*ScanOutcome, error) {
	if s.scanner == nil {
		return nil, ErrScannerUnavailable
	}

	start := s.timeSource.Now()
	invoice, err := s.scanner.ScanInvoice(data, contentType)
	elapsed := s.timeSource.Now().Sub(start).Seconds()
	if err != nil {
		metrics.ScanDuration.WithLabelValues("error").Observe(elapsed)
		slog.Error("Failed to scan invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning invoice: %w", err)
	}
	metrics.ScanDuration.WithLabelValues("ok").Observe(elapsed)

	known, sel := s.snapshot()
	if set, ok := lottery.FindByPeriod(known, invoice.Period); invoice.Period != "" && ok {
		known, sel = []lottery.WinningNumberSet{set}, 0
	}

	result, err := s.check(invoice.Number, sel, known)
	outcome := &ScanOutcome{Number: invoice.Number, Period: invoice.Period, Result: result}
	return outcome, err
}

// CheckQRPayload checks the invoice number carried by a decoded QR code
func (s *Service) CheckQRPayload(payload string) (lottery.PrizeResult, error) {
	number, ok := scanning.ParseQRPayload(payload)
	if !ok {
		return lottery.PrizeResult{}, ErrUnrecognizedQR
	}
	return s.CheckNumber(number)
}

// AddPending stores a 3-digit receipt for a future draw. An empty period means
// the next upcoming one.
func (s *Service) AddPending(number, period string) (*PendingReceipt, error) {
	if len(number) != 3 || voice.NormalizeDigits(number) != number {
		return nil, ErrInvalidPending
	}
	if period == "" {
		period = s.NextPeriods()[0]
	}

	receipt := &PendingReceipt{
		ID:        s.idGenerator.Generate(),
		Number:    number,
		Period:    period,
		CreatedAt: s.timeSource.Now(),
	}
	if err := s.db.SavePendingReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving pending receipt: %w", err)
	}
	return receipt, nil
}

// DeletePending removes a pending receipt
func (s *Service) DeletePending(id string) error {
	if err := s.db.DeletePendingReceipt(id); err != nil {
		return fmt.Errorf("deleting pending receipt: %w", err)
	}
	return nil
}

// ListPending returns pending receipts, newest first, with their status
func (s *Service) ListPending() ([]PendingView, error) {
	receipts, err := s.db.ListPendingReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing pending receipts: %w", err)
	}
	sortNewestFirst(receipts, func(r *PendingReceipt) time.Time { return r.CreatedAt })

	known, _ := s.snapshot()
	views := make([]PendingView, 0, len(receipts))
	for _, r := range receipts {
		views = append(views, pendingStatus(*r, known))
	}
	return views, nil
}

// PendingAlerts returns the pending receipts that may have won. They are
// reported once; later calls return nothing until the next Refresh.
func (s *Service) PendingAlerts() ([]PendingReceipt, error) {
	s.mu.RLock()
	alerted := s.alertedPending
	s.mu.RUnlock()
	if alerted {
		return nil, nil
	}

	views, err := s.ListPending()
	if err != nil {
		return nil, err
	}
	var winners []PendingReceipt
	for _, v := range views {
		if v.Status == PendingWin {
			winners = append(winners, v.PendingReceipt)
		}
	}
	if len(winners) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	if s.alertedPending {
		s.mu.Unlock()
		return nil, nil
	}
	s.alertedPending = true
	s.mu.Unlock()

	s.notifier.PendingWins(winners)
	return winners, nil
}

// ListHistory returns the winning records, newest first
func (s *Service) ListHistory() ([]*WinningRecord, error) {
	records, err := s.db.ListWinningRecords()
	if err != nil {
		return nil, fmt.Errorf("listing winning records: %w", err)
	}
	sortNewestFirst(records, func(r *WinningRecord) time.Time { return r.CreatedAt })
	return records, nil
}

// ClearHistory removes every winning record
func (s *Service) ClearHistory() error {
	if err := s.db.ClearWinningRecords(); err != nil {
		return fmt.Errorf("clearing winning records: %w", err)
	}
	return nil
}

func sortNewestFirst[T any](items []*T, at func(*T) time.Time) {
	slices.SortStableFunc(items, func(a, b *T) int {
		return at(b).Compare(at(a))
	})
}
