package cover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
	"moodguard/internal/cooldown"
	"moodguard/internal/telemetry"
	"moodguard/internal/utils"
)

const scratchPrefix = "cover-"

var (
	ErrInvalidSource = apperr.New(apperr.Validation, "cover.request", "that is not a YouTube video link")
	ErrTicketGone    = apperr.New(apperr.Validation, "cover.start", "this selection expired or was already used")
	ErrNotYourTicket = apperr.New(apperr.Authorization, "cover.start", "this selection belongs to someone else")
	ErrUnknownModel  = apperr.New(apperr.Validation, "cover.start", "unknown voice model")
	ErrClosed        = apperr.New(apperr.ExternalService, "cover.start", "cover service is shutting down")
)

// CooldownError reports that the requester must wait before asking again.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cover on cooldown for %s", e.Remaining.Round(time.Second))
}

// Wallet charges and refunds the cover cost.
type Wallet interface {
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
}

// Notifier is told once when a job reaches a terminal status.
type Notifier interface {
	CoverFinished(ctx context.Context, job Job)
}

// Ticket is a paid request waiting for the requester to pick a voice model.
type Ticket struct {
	ID        string
	Requester string
	ChannelID string
	Source    string
	Charged   int64
	Balance   int64
	ExpiresAt time.Time
}

type Pipeline struct {
	cfg       config.CoverConfig
	cooldown  time.Duration
	wallet    Wallet
	ledger    cooldown.Ledger
	extractor Extractor
	converter Converter
	notifier  Notifier
	registry  *Registry
	slots     *semaphore.Weighted
	logger    *zap.Logger

	pollInterval time.Duration
	now          func() time.Time

	mu      sync.Mutex
	closed  bool
	tickets map[string]Ticket
	scratch map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(cfg config.CoverConfig, windows config.CooldownsConfig, wallet Wallet, ledger cooldown.Ledger, extractor Extractor, converter Converter, notifier Notifier, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	slots := cfg.MaxConcurrentExtractions
	if slots <= 0 {
		slots = 1
	}
	interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:          cfg,
		cooldown:     time.Duration(windows.CoverMinutes) * time.Minute,
		wallet:       wallet,
		ledger:       ledger,
		extractor:    extractor,
		converter:    converter,
		notifier:     notifier,
		registry:     NewRegistry(time.Duration(cfg.RetentionHours) * time.Hour),
		slots:        semaphore.NewWeighted(int64(slots)),
		logger:       logger,
		pollInterval: interval,
		now:          time.Now,
		tickets:      make(map[string]Ticket),
		scratch:      make(map[string]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (p *Pipeline) Models() []config.VoiceModel {
	return p.cfg.Models
}

func (p *Pipeline) Registry() *Registry { return p.registry }

// Request validates the link, reserves the cooldown and charges the cost. The returned
// ticket is redeemed with Start once the requester picks a model.
func (p *Pipeline) Request(ctx context.Context, requester, channelID, rawURL string) (Ticket, error) {
	source, err := utils.YouTubeSource(rawURL)
	if err != nil {
		return Ticket{}, ErrInvalidSource
	}

	now := p.now()
	res, err := p.ledger.Reserve(ctx, requester, cooldown.ActionCover, p.cooldown, now)
	if err != nil {
		return Ticket{}, apperr.E(apperr.Internal, "cover.request", err)
	}
	if !res.Allowed {
		return Ticket{}, &CooldownError{Remaining: res.Remaining}
	}

	cost := int64(p.cfg.Cost)
	balance, err := p.wallet.Debit(ctx, requester, cost)
	if err != nil {
		if relErr := p.ledger.Release(context.WithoutCancel(ctx), requester, cooldown.ActionCover); relErr != nil {
			telemetry.Logger(ctx, p.logger).Warn("cover cooldown release failed", zap.String("user", requester), zap.Error(relErr))
		}
		return Ticket{}, err
	}

	ticket := Ticket{
		ID:        uuid.NewString(),
		Requester: requester,
		ChannelID: channelID,
		Source:    source,
		Charged:   cost,
		Balance:   balance,
		ExpiresAt: now.Add(time.Duration(p.cfg.SelectionTimeoutMinutes) * time.Minute),
	}
	p.mu.Lock()
	p.tickets[ticket.ID] = ticket
	p.mu.Unlock()
	telemetry.CountCover("requested")
	return ticket, nil
}

func (p *Pipeline) model(id string) (config.VoiceModel, bool) {
	for _, m := range p.cfg.Models {
		if m.ID == id {
			return m, true
		}
	}
	return config.VoiceModel{}, false
}

// claim consumes a ticket on behalf of actor. Only the requester may redeem it and only once.
func (p *Pipeline) claim(ctx context.Context, ticketID, actor string) (Ticket, error) {
	p.mu.Lock()
	ticket, ok := p.tickets[ticketID]
	if !ok {
		p.mu.Unlock()
		return Ticket{}, ErrTicketGone
	}
	if ticket.Requester != actor {
		p.mu.Unlock()
		return Ticket{}, ErrNotYourTicket
	}
	delete(p.tickets, ticketID)
	p.mu.Unlock()

	if p.now().After(ticket.ExpiresAt) {
		p.refund(ctx, ticket, "selection expired")
		return Ticket{}, ErrTicketGone
	}
	return ticket, nil
}

// Start extracts the audio, submits it and begins polling in the background. Any failure
// before the job is accepted refunds the cost.
func (p *Pipeline) Start(ctx context.Context, ticketID, actor, modelID string) (Job, error) {
	if _, ok := p.model(modelID); !ok {
		return Job{}, ErrUnknownModel
	}
	if !p.enter() {
		if ticket, err := p.claim(ctx, ticketID, actor); err == nil {
			p.refund(ctx, ticket, "shutting down")
		}
		return Job{}, ErrClosed
	}
	defer p.wg.Done()

	ticket, err := p.claim(ctx, ticketID, actor)
	if err != nil {
		return Job{}, err
	}
	log := telemetry.Logger(ctx, p.logger).With(zap.String("user", ticket.Requester), zap.String("model", modelID))

	dir, err := os.MkdirTemp(p.cfg.WorkDir, scratchPrefix)
	if err != nil {
		p.refund(ctx, ticket, "scratch dir")
		return Job{}, apperr.E(apperr.ResourceCleanup, "cover.start", err)
	}
	p.trackScratch(dir, true)
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("scratch cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
		p.trackScratch(dir, false)
	}()

	audio, err := p.extract(ctx, ticket.Source, dir)
	if err != nil {
		log.Warn("audio extraction failed", zap.Error(err))
		p.refund(ctx, ticket, "extraction failed")
		telemetry.CountCover("extract_failed")
		return Job{}, apperr.E(apperr.ExternalService, "cover.extract", err)
	}

	jobID, err := p.converter.Submit(ctx, audio, modelID)
	if err != nil {
		log.Warn("cover submission failed", zap.Error(err))
		p.refund(ctx, ticket, "submission failed")
		telemetry.CountCover("submit_failed")
		return Job{}, err
	}

	job := Job{
		ID:        jobID,
		Requester: ticket.Requester,
		ChannelID: ticket.ChannelID,
		Model:     modelID,
		Status:    StatusProcessing,
		CreatedAt: p.now(),
	}
	p.registry.Put(job)
	telemetry.CountCover("submitted")
	log.Info("cover submitted", zap.String("job", jobID))

	// Start still holds its own count here, so this Add cannot race Close's Wait.
	p.wg.Add(1)
	go p.poll(telemetry.WithCorrelation(p.ctx, telemetry.GetCorrelation(ctx)), jobID)
	return job, nil
}

func (p *Pipeline) extract(ctx context.Context, source, dir string) (string, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.slots.Release(1)

	if p.cfg.ExtractTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.ExtractTimeoutSeconds)*time.Second)
		defer cancel()
	}
	var path string
	_, err := telemetry.TimeFunc(telemetry.ExtractionDuration, func() error {
		var err error
		path, err = p.extractor.Extract(ctx, source, dir)
		return err
	})
	return path, err
}

func (p *Pipeline) refund(ctx context.Context, ticket Ticket, reason string) {
	if ticket.Charged <= 0 {
		return
	}
	if _, err := p.wallet.Credit(context.WithoutCancel(ctx), ticket.Requester, ticket.Charged); err != nil {
		p.logger.Error("cover refund failed", zap.String("user", ticket.Requester), zap.Int64("amount", ticket.Charged), zap.String("reason", reason), zap.Error(err))
		return
	}
	telemetry.CountCover("refunded")
}

func (p *Pipeline) poll(ctx context.Context, jobID string) {
	defer p.wg.Done()
	telemetry.AddPolls(1)
	defer telemetry.AddPolls(-1)
	log := telemetry.Logger(ctx, p.logger).With(zap.String("job", jobID))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for attempt := 0; attempt < p.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := p.refresh(ctx, jobID)
		if err != nil {
			log.Debug("status check failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		switch status {
		case StatusCompleted:
			if _, ok := p.DownloadURL(ctx, jobID); !ok {
				p.finish(ctx, jobID, StatusFailed)
				return
			}
			p.finish(ctx, jobID, StatusCompleted)
			return
		case StatusFailed:
			p.finish(ctx, jobID, StatusFailed)
			return
		}
	}
	if ctx.Err() == nil {
		log.Info("cover polling exhausted")
		p.finish(ctx, jobID, StatusTimedOut)
	}
}

func (p *Pipeline) finish(ctx context.Context, jobID string, status Status) {
	job, ok := p.registry.Update(jobID, func(j *Job) { j.Status = status })
	if !ok {
		return
	}
	telemetry.CountCover(string(status))
	if p.notifier != nil {
		p.notifier.CoverFinished(ctx, job)
	}
}

// refresh asks the service for the job's status. Unknown jobs are reported as failed.
func (p *Pipeline) refresh(ctx context.Context, jobID string) (Status, error) {
	job, ok := p.registry.Get(jobID)
	if !ok {
		return StatusFailed, nil
	}
	if job.Status.Terminal() {
		return job.Status, nil
	}
	status, err := p.converter.Status(ctx, jobID)
	if err != nil {
		return StatusProcessing, err
	}
	if status == StatusFailed || status == StatusProcessing {
		return status, nil
	}
	p.registry.Update(jobID, func(j *Job) {
		if !j.Status.Terminal() {
			j.Status = status
		}
	})
	return status, nil
}

// Status reports the job's current status, asking the service when it is still processing.
func (p *Pipeline) Status(ctx context.Context, jobID string) Status {
	status, err := p.refresh(ctx, jobID)
	if err != nil {
		telemetry.Logger(ctx, p.logger).Debug("status check failed", zap.String("job", jobID), zap.Error(err))
	}
	return status
}

// DownloadURL is only available for completed jobs.
func (p *Pipeline) DownloadURL(ctx context.Context, jobID string) (string, bool) {
	job, ok := p.registry.Get(jobID)
	if !ok || job.Status != StatusCompleted {
		return "", false
	}
	if job.DownloadURL != "" {
		return job.DownloadURL, true
	}
	url, err := p.converter.DownloadURL(ctx, jobID)
	if err != nil {
		telemetry.Logger(ctx, p.logger).Warn("download url lookup failed", zap.String("job", jobID), zap.Error(err))
		return "", false
	}
	p.registry.Update(jobID, func(j *Job) { j.DownloadURL = url })
	return url, true
}

func (p *Pipeline) trackScratch(dir string, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if active {
		p.scratch[dir] = struct{}{}
	} else {
		delete(p.scratch, dir)
	}
}

// Sweep purges old jobs, refunds expired tickets and removes abandoned scratch directories.
func (p *Pipeline) Sweep(now time.Time) {
	jobs := p.registry.Sweep(now)

	p.mu.Lock()
	var expired []Ticket
	for id, ticket := range p.tickets {
		if now.After(ticket.ExpiresAt) {
			expired = append(expired, ticket)
			delete(p.tickets, id)
		}
	}
	p.mu.Unlock()
	for _, ticket := range expired {
		p.refund(p.ctx, ticket, "selection expired")
	}

	dirs := p.sweepScratch(now)
	if jobs+len(expired)+dirs > 0 {
		p.logger.Info("cover sweep", zap.Int("jobs", jobs), zap.Int("tickets", len(expired)), zap.Int("dirs", dirs))
	}
}

func (p *Pipeline) sweepScratch(now time.Time) int {
	base := p.cfg.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		p.logger.Warn("scratch sweep failed", zap.String("dir", base), zap.Error(err))
		return 0
	}
	maxAge := 2 * time.Duration(p.cfg.ExtractTimeoutSeconds) * time.Second
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), scratchPrefix) {
			continue
		}
		path := filepath.Join(base, entry.Name())
		p.mu.Lock()
		_, active := p.scratch[path]
		p.mu.Unlock()
		if active {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			p.logger.Warn("scratch removal failed", zap.String("dir", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	interval := time.Duration(p.cfg.SweepMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(p.now())
		}
	}
}

// enter registers an in-flight Start. It fails once Close has begun.
func (p *Pipeline) enter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

// Close rejects new starts, stops every poll loop and waits for in-flight work to return.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

// IsCooldown reports whether err came from the cover cooldown.
func IsCooldown(err error) (*CooldownError, bool) {
	var cd *CooldownError
	if errors.As(err, &cd) {
		return cd, true
	}
	return nil, false
}
