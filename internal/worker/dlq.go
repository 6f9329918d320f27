package worker

// Jobs that exhaust their retries land on a Redis list per source queue
// ("dlq:" + queue) and wait for manual inspection. Nothing re-enqueues them
// automatically; an operator decides whether the recibo PDF or notification
// is still worth producing.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry preserves the failed job together with the context of the failure.
type DLQEntry struct {
	ColaOrigen string          `json:"cola_origen"`
	JobType    string          `json:"job_type"`
	Payload    json.RawMessage `json:"payload"`
	Motivo     string          `json:"motivo"`
	FallidoAt  time.Time       `json:"fallido_at"`
	Intentos   int             `json:"intentos"`
}

// SendToDLQ is best-effort: the job already left its source queue, so a failed
// push can only be logged.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue, jobType string, payload json.RawMessage, motivo string, intentos int) {
	entry := DLQEntry{
		ColaOrigen: queue,
		JobType:    jobType,
		Payload:    payload,
		Motivo:     motivo,
		FallidoAt:  time.Now().UTC(),
		Intentos:   intentos,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("cola", queue).Msg("dlq: no se pudo serializar la entrada")
		return
	}

	key := DLQPrefix + queue
	if err := rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: no se pudo encolar el job descartado")
		return
	}

	largo, _ := rdb.LLen(ctx, key).Result()
	log.Warn().
		Str("cola", queue).
		Str("job_type", jobType).
		Str("motivo", motivo).
		Int("intentos", intentos).
		Int64("dlq_largo", largo).
		Msg("dlq: job descartado tras agotar reintentos")
}

// DLQLength reports the depth of a dead letter list, for the health endpoint
// and monitoring.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}
