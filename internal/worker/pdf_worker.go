package worker

// pdf_worker.go
// Renders receipt PDFs from QueuePDF. The render is deliberately outside the
// emitting transaction: a failed render never blocks or rolls back the folio.
// Failed renders get retry metadata on the recibo row; retry_cron picks them
// up with exponential backoff.

import (
	"context"
	"encoding/json"
	"time"

	"hospicaja/internal/infra"
	"hospicaja/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PDFJobPayload is the job envelope sent to QueuePDF.
type PDFJobPayload struct {
	ReciboID string `json:"recibo_id"`
}

type PDFWorker struct {
	reciboRepo  repository.ReciboRepository
	rdb         *redis.Client
	storagePath string
}

func NewPDFWorker(reciboRepo repository.ReciboRepository, rdb *redis.Client, storagePath string) *PDFWorker {
	return &PDFWorker{reciboRepo: reciboRepo, rdb: rdb, storagePath: storagePath}
}

func (w *PDFWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload PDFJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("pdf_worker: invalid payload")
		return
	}

	reciboID, err := uuid.Parse(payload.ReciboID)
	if err != nil {
		log.Error().Str("recibo_id", payload.ReciboID).Msg("pdf_worker: invalid recibo_id")
		return
	}

	rec, err := w.reciboRepo.FindByID(ctx, reciboID)
	if err != nil {
		log.Error().Err(err).Str("recibo_id", payload.ReciboID).Msg("pdf_worker: recibo not found")
		return
	}
	if rec.PDFPath != nil {
		return // already rendered (duplicate job)
	}

	path, renderErr := infra.GenerateReciboPDF(rec, w.storagePath)
	if renderErr == nil {
		rec.PDFPath = &path
		rec.NextRetryAt = nil
		rec.LastError = nil
		if err := w.reciboRepo.Update(ctx, rec); err != nil {
			log.Error().Err(err).Str("recibo_id", payload.ReciboID).Msg("pdf_worker: failed to store pdf path")
			return
		}
		log.Info().Str("pdf", path).Str("recibo_id", payload.ReciboID).Msg("pdf_worker: recibo rendered")
		return
	}

	// Failure — schedule a retry or give up to the DLQ
	rec.RetryCount++
	errMsg := renderErr.Error()
	rec.LastError = &errMsg

	if rec.RetryCount >= MaxReciboRetries {
		rec.NextRetryAt = nil
		SendToDLQ(ctx, w.rdb, QueuePDF, "pdf", raw,
			"max retries exceeded: "+errMsg, rec.RetryCount)
	} else {
		next := time.Now().Add(computeRetryBackoff(rec.RetryCount))
		rec.NextRetryAt = &next
		log.Warn().
			Err(renderErr).
			Str("recibo_id", payload.ReciboID).
			Int("retry_count", rec.RetryCount).
			Time("next_retry_at", next).
			Msg("pdf_worker: render failed, retry scheduled")
	}
	_ = w.reciboRepo.Update(ctx, rec)
}
