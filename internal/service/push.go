package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"campusnotify/internal/logger"
	"campusnotify/internal/metrics"
	"campusnotify/internal/model"
	"campusnotify/internal/repository"
)

// PushProvider is one push delivery backend.
type PushProvider interface {
	Name() string
	// MaxBatch is the most tokens a single SendMulticast call accepts.
	MaxBatch() int
	// Accepts reports whether the provider can deliver to token.
	Accepts(token string) bool
	// SendMulticast sends msg to every token. Results are index-aligned with
	// tokens. A non-nil error means the whole batch failed in transport.
	SendMulticast(ctx context.Context, tokens []string, msg model.PushMessage, data map[string]string) ([]model.PushResult, error)
}

// PushDispatcher routes device tokens to providers, sends in bounded
// concurrent batches and retires tokens the providers reject permanently.
// Transient failures are counted and never retried.
type PushDispatcher struct {
	providers   []PushProvider
	tokens      repository.DeviceTokenRepository
	concurrency int
	log         logrus.FieldLogger
}

func NewPushDispatcher(tokens repository.DeviceTokenRepository, concurrency int, log logrus.FieldLogger, providers ...PushProvider) *PushDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PushDispatcher{
		providers:   providers,
		tokens:      tokens,
		concurrency: concurrency,
		log:         logger.Component(log, "push"),
	}
}

// Enabled reports whether at least one provider is configured.
func (d *PushDispatcher) Enabled() bool {
	return len(d.providers) > 0
}

type pushBatch struct {
	provider PushProvider
	tokens   []string
}

// Send delivers msg to tokens. The returned error only reports a failure to
// deactivate rejected tokens; delivery failures are in the report.
func (d *PushDispatcher) Send(ctx context.Context, tokens []string, msg model.PushMessage, data map[string]string) (model.PushReport, error) {
	var report model.PushReport
	tokens = uniqueStrings(tokens)
	if len(tokens) == 0 {
		report.NoActiveTokens = true
		return report, nil
	}

	batches, unroutable := d.plan(tokens)
	if unroutable > 0 {
		report.FailureCount += unroutable
		d.log.WithField("count", unroutable).Warn("Send: no provider accepts some tokens")
	}

	var (
		mu        sync.Mutex
		succeeded []string
		permanent []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			name := b.provider.Name()
			start := time.Now()
			results, err := b.provider.SendMulticast(gctx, b.tokens, msg, data)
			metrics.PushBatchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.FailureCount += len(b.tokens)
				metrics.PushResults.WithLabelValues(name, "transient").Add(float64(len(b.tokens)))
				d.log.WithError(err).WithFields(logrus.Fields{
					"provider": name,
					"tokens":   len(b.tokens),
				}).Warn("Send: batch failed")
				return nil
			}
			for _, r := range results {
				switch {
				case r.Success:
					report.SuccessCount++
					succeeded = append(succeeded, r.Token)
					metrics.PushResults.WithLabelValues(name, "success").Inc()
				case r.Permanent:
					report.FailureCount++
					permanent = append(permanent, r.Token)
					metrics.PushResults.WithLabelValues(name, "permanent").Inc()
				default:
					report.FailureCount++
					metrics.PushResults.WithLabelValues(name, "transient").Inc()
					d.log.WithError(r.Err).WithFields(logrus.Fields{
						"provider": name,
						"token":    model.PreviewToken(r.Token),
					}).Debug("Send: transient failure")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	// Bookkeeping must outlive a cancelled send.
	bg := context.WithoutCancel(ctx)
	if err := d.tokens.TouchTokens(bg, succeeded); err != nil {
		d.log.WithError(err).Warn("Send: touch tokens failed")
	}

	var err error
	if len(permanent) > 0 {
		if _, derr := d.tokens.DeactivateTokens(bg, permanent); derr != nil {
			err = fmt.Errorf("deactivate rejected tokens: %w", derr)
		} else {
			report.Deactivated = permanent
			d.log.WithField("count", len(permanent)).Info("Send: deactivated rejected tokens")
		}
	}

	d.log.WithFields(logrus.Fields{
		"tokens":  len(tokens),
		"success": report.SuccessCount,
		"failure": report.FailureCount,
	}).Info("Push sent")
	return report, err
}

// SendToUsers sends msg to every active token of userIDs.
func (d *PushDispatcher) SendToUsers(ctx context.Context, userIDs []int64, msg model.PushMessage, data map[string]string) (model.PushReport, error) {
	if len(userIDs) == 0 {
		return model.PushReport{NoActiveTokens: true}, nil
	}

	rows, err := d.tokens.ActiveTokensForUsers(ctx, userIDs)
	if err != nil {
		return model.PushReport{}, fmt.Errorf("load device tokens: %w", err)
	}
	if len(rows) == 0 {
		return model.PushReport{NoActiveTokens: true}, nil
	}

	tokens := make([]string, len(rows))
	for i, t := range rows {
		tokens[i] = t.Token
	}
	return d.Send(ctx, tokens, msg, data)
}

// plan assigns each token to the first provider accepting it and chunks per
// provider batch size.
func (d *PushDispatcher) plan(tokens []string) ([]pushBatch, int) {
	byProvider := make([][]string, len(d.providers))
	unroutable := 0
	for _, token := range tokens {
		routed := false
		for i, p := range d.providers {
			if p.Accepts(token) {
				byProvider[i] = append(byProvider[i], token)
				routed = true
				break
			}
		}
		if !routed {
			unroutable++
		}
	}

	var batches []pushBatch
	for i, p := range d.providers {
		size := p.MaxBatch()
		if size <= 0 {
			size = len(byProvider[i])
		}
		for _, chunk := range chunkStrings(byProvider[i], size) {
			batches = append(batches, pushBatch{provider: p, tokens: chunk})
		}
	}
	return batches, unroutable
}

func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for size > 0 && len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		chunks = append(chunks, items[:n:n])
		items = items[n:]
	}
	return chunks
}

func uniqueStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
