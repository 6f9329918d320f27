package worker

// retry_cron.go
// Background goroutine that periodically re-attempts PDF renders for recibos
// stuck without a pdf_path and with next_retry_at in the past. Retries use
// exponential backoff; after MaxReciboRetries the job lands in the DLQ.

import (
	"context"
	"fmt"
	"time"

	"hospicaja/internal/infra"
	"hospicaja/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10

	// MaxReciboRetries caps async render attempts per recibo.
	MaxReciboRetries = 5
)

// computeRetryBackoff returns the wait before attempt n: 30s, 1m, 2m, 4m…
// capped at 30 minutes.
func computeRetryBackoff(retryCount int) time.Duration {
	d := time.Duration(1<<uint(retryCount-1)) * 30 * time.Second
	if d > 30*time.Minute {
		d = 30 * time.Minute
	}
	return d
}

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	ReciboRepo     repository.ReciboRepository
	RDB            *redis.Client
	PDFStoragePath string
}

// StartRetryCron launches a background goroutine that ticks every 30s and
// re-renders pending recibo PDFs. It respects the context for graceful
// shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	now := time.Now()
	recibos, err := cfg.ReciboRepo.ListPendingRetries(ctx, now, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending retries")
		return
	}
	if len(recibos) == 0 {
		return
	}

	log.Info().Int("count", len(recibos)).Msg("retry_cron: processing pending recibos")

	for i := range recibos {
		rec := &recibos[i]

		path, renderErr := infra.GenerateReciboPDF(rec, cfg.PDFStoragePath)
		if renderErr == nil {
			rec.PDFPath = &path
			rec.NextRetryAt = nil
			rec.LastError = nil
			_ = cfg.ReciboRepo.Update(ctx, rec)
			log.Info().
				Str("recibo_id", rec.ID.String()).
				Int("total_retries", rec.RetryCount).
				Msg("retry_cron: recibo rendered after retry")
			continue
		}

		rec.RetryCount++
		errMsg := renderErr.Error()
		rec.LastError = &errMsg

		if rec.RetryCount >= MaxReciboRetries {
			rec.NextRetryAt = nil
			log.Error().
				Str("recibo_id", rec.ID.String()).
				Int("retries", rec.RetryCount).
				Msg("retry_cron: max retries exceeded, moving to DLQ")

			payload := fmt.Sprintf(`{"recibo_id":"%s"}`, rec.ID)
			SendToDLQ(ctx, cfg.RDB, QueuePDF, "pdf", []byte(payload),
				fmt.Sprintf("max retries (%d) exceeded: %s", MaxReciboRetries, errMsg),
				rec.RetryCount)
		} else {
			next := time.Now().Add(computeRetryBackoff(rec.RetryCount))
			rec.NextRetryAt = &next
			log.Warn().
				Str("recibo_id", rec.ID.String()).
				Int("retry_count", rec.RetryCount).
				Time("next_retry_at", next).
				Msg("retry_cron: render failed, scheduled next attempt")
		}
		_ = cfg.ReciboRepo.Update(ctx, rec)
	}
}
