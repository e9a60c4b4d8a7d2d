package services

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/WeMakeGood/mg-asset-download/domain"
	"github.com/WeMakeGood/mg-asset-download/models"
)

const lastRunTimeFormat = "2006-01-02 15:04:05"

// Consumer-side interfaces
type DocumentStore interface {
	SelectEligible(limit int) ([]models.Document, error)
	MarkInProgress(id uint) error
	MarkCompleted(id uint) error
	MarkFailed(id uint) error
	UpdateBody(id uint, body string) error
	Counts() (total int64, completed int64, err error)
}

type ReferenceScanner interface {
	Scan(body string) []domain.ExternalReference
	Rewrite(body string, subs []domain.Substitution) string
}

type AssetResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

type RunLock interface {
	Acquire(ctx context.Context, holder string) (bool, error)
	Get(ctx context.Context) (*domain.LockInfo, error)
	Release(ctx context.Context) error
	SetLastRun(ctx context.Context, value string) error
	GetLastRun(ctx context.Context) (string, error)
}

type ProgressMirror interface {
	UpdateProgress(ctx context.Context, total, completed int64, lastRun string) error
}

type LocalizerService struct {
	docs           DocumentStore
	scanner        ReferenceScanner
	resolver       AssetResolver
	lock           RunLock
	mirror         ProgressMirror
	events         EventPublisher
	eventsQueueURL string
	batchSize      int
	now            func() time.Time
}

// Functional Options Pattern
type LocalizerOption func(*LocalizerService)

func WithDocumentStore(d DocumentStore) LocalizerOption {
	return func(s *LocalizerService) { s.docs = d }
}

func WithScanner(sc ReferenceScanner) LocalizerOption {
	return func(s *LocalizerService) { s.scanner = sc }
}

func WithResolver(r AssetResolver) LocalizerOption {
	return func(s *LocalizerService) { s.resolver = r }
}

func WithRunLock(l RunLock) LocalizerOption {
	return func(s *LocalizerService) { s.lock = l }
}

func WithProgressMirror(m ProgressMirror) LocalizerOption {
	return func(s *LocalizerService) { s.mirror = m }
}

func WithLocalizerEvents(p EventPublisher, queueURL string) LocalizerOption {
	return func(s *LocalizerService) {
		s.events = p
		s.eventsQueueURL = queueURL
	}
}

func WithBatchSize(n int) LocalizerOption {
	return func(s *LocalizerService) { s.batchSize = n }
}

func NewLocalizerService(opts ...LocalizerOption) *LocalizerService {
	s := &LocalizerService{
		batchSize: 5,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize <= 0 {
		s.batchSize = 5
	}
	return s
}

// ProcessBatch runs one bounded background pass: up to batchSize eligible
// documents, each isolated so a bad document never aborts the batch. A
// held interactive lease makes the whole call a no-op.
func (s *LocalizerService) ProcessBatch(ctx context.Context) error {
	info, err := s.lock.Get(ctx)
	if err != nil {
		return err
	}
	if info.Held {
		log.Printf("Processing lock held by %s session, skipping batch", info.Holder)
		return nil
	}

	docs, err := s.docs.SelectEligible(s.batchSize)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		if err := s.lock.SetLastRun(ctx, s.now().Format(lastRunTimeFormat)+" (Completed)"); err != nil {
			log.Printf("failed to update last run marker: %v", err)
		}
		s.reportProgress(ctx, domain.MsgTypeBatchCompleted)
		return nil
	}

	for _, doc := range docs {
		s.processDocument(ctx, doc)
	}

	if err := s.lock.SetLastRun(ctx, s.now().Format(lastRunTimeFormat)); err != nil {
		log.Printf("failed to update last run marker: %v", err)
	}
	s.reportProgress(ctx, domain.MsgTypeBatchCompleted)
	return nil
}

// ProcessOne runs one interactive step. The first call of a session takes
// the global lease; the call that finds the backlog empty releases it and
// reports completion, so a driver can simply loop until Complete.
func (s *LocalizerService) ProcessOne(ctx context.Context) (*domain.StepResult, error) {
	info, err := s.lock.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !info.Held {
		ok, err := s.lock.Acquire(ctx, domain.HolderInteractive)
		if err != nil {
			return nil, err
		}
		// SetNX lost against a concurrent session between Get and here.
		if !ok {
			return nil, domain.ErrLockHeld
		}
	}

	docs, err := s.docs.SelectEligible(1)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		if err := s.lock.Release(ctx); err != nil {
			return nil, err
		}
		total, completed, err := s.docs.Counts()
		if err != nil {
			return nil, err
		}
		return &domain.StepResult{
			Complete:  true,
			Total:     total,
			Remaining: total - completed,
		}, nil
	}

	doc := docs[0]
	hadWarnings := s.processDocument(ctx, doc)

	if err := s.lock.SetLastRun(ctx, s.now().Format(lastRunTimeFormat)); err != nil {
		log.Printf("failed to update last run marker: %v", err)
	}

	total, completed, err := s.docs.Counts()
	if err != nil {
		return nil, err
	}
	s.reportProgress(ctx, domain.MsgTypeStepCompleted)

	return &domain.StepResult{
		Complete:    false,
		DocumentID:  doc.ID,
		Title:       doc.Title,
		HadWarnings: hadWarnings,
		Remaining:   total - completed,
		Total:       total,
	}, nil
}

// processDocument drives one document through scan → resolve → rewrite →
// persist and settles its status. Returns true when anything went wrong;
// failures never propagate past this boundary.
//
// Successful substitutions are persisted even when other references in the
// same document failed: the failed ones stay external, the document is
// marked failed, and the next attempt re-scans the persisted body where
// the already-localized references fall under the local-URL guard.
func (s *LocalizerService) processDocument(ctx context.Context, doc models.Document) bool {
	log.Printf("Processing document %d (%s)", doc.ID, doc.Title)

	if err := s.docs.MarkInProgress(doc.ID); err != nil {
		log.Printf("failed to mark document %d in progress: %v", doc.ID, err)
		return true
	}

	refs := s.scanner.Scan(doc.Body)

	resolved := make(map[string]string)
	subs := []domain.Substitution{}
	hadFailure := false
	for _, ref := range refs {
		localURL, ok := resolved[ref.URL]
		if !ok {
			var err error
			localURL, err = s.resolver.Resolve(ctx, ref.URL)
			if err != nil {
				log.Printf("failed to resolve %s for document %d: %v", ref.URL, doc.ID, err)
				hadFailure = true
				continue
			}
			resolved[ref.URL] = localURL
		}
		subs = append(subs, domain.Substitution{Reference: ref, LocalURL: localURL})
	}

	if len(subs) > 0 {
		newBody := s.scanner.Rewrite(doc.Body, subs)
		if newBody != doc.Body {
			if err := s.docs.UpdateBody(doc.ID, newBody); err != nil {
				log.Printf("failed to persist document %d: %v", doc.ID, err)
				hadFailure = true
			}
		}
	}

	if hadFailure {
		if err := s.docs.MarkFailed(doc.ID); err != nil {
			log.Printf("failed to mark document %d failed: %v", doc.ID, err)
		}
		return true
	}

	if err := s.docs.MarkCompleted(doc.ID); err != nil {
		log.Printf("failed to mark document %d completed: %v", doc.ID, err)
		return true
	}
	return false
}

// reportProgress pushes current counts to the dashboard mirror and the
// events queue. Both sinks are best-effort.
func (s *LocalizerService) reportProgress(ctx context.Context, msgType string) {
	total, completed, err := s.docs.Counts()
	if err != nil {
		log.Printf("failed to count documents for progress report: %v", err)
		return
	}
	ranAt := s.now().Format(lastRunTimeFormat)

	if s.mirror != nil {
		if err := s.mirror.UpdateProgress(ctx, total, completed, ranAt); err != nil {
			log.Printf("failed to mirror progress: %v", err)
		}
	}

	if s.events != nil && s.eventsQueueURL != "" {
		event := domain.ProgressEvent{
			Type:      msgType,
			Total:     total,
			Completed: completed,
			RanAt:     ranAt,
		}
		if err := s.events.SendMessage(ctx, s.eventsQueueURL, event); err != nil {
			log.Printf("failed to publish progress event: %v", err)
		}
	}
}

// Counts returns the progress numerator and denominator: completed
// documents over every tracked document regardless of status.
func (s *LocalizerService) Counts(ctx context.Context) (total, completed int64, err error) {
	return s.docs.Counts()
}

// Percentage computes localization progress for display, rounded to the
// nearest whole percent. 7 of 10 → 70, 2 of 3 → 67.
func Percentage(total, completed int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func (s *LocalizerService) LastRun(ctx context.Context) (string, error) {
	return s.lock.GetLastRun(ctx)
}

func (s *LocalizerService) LockInfo(ctx context.Context) (*domain.LockInfo, error) {
	return s.lock.Get(ctx)
}

// ClearLock is the operator escape hatch for a stale lease. The worker
// never reclaims a lock on its own.
func (s *LocalizerService) ClearLock(ctx context.Context) error {
	return s.lock.Release(ctx)
}
