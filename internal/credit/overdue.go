package credit

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fergasdev/backend-fergas/internal/obs"
)

// TaskMarkOverdue is the asynq task type for the overdue installment sweep.
const TaskMarkOverdue = "cuotas:marcar_vencidas"

// NewMarkOverdueTask builds the sweep task. It carries no payload; the
// handler always sweeps relative to its own clock.
func NewMarkOverdueTask() *asynq.Task {
	return asynq.NewTask(TaskMarkOverdue, nil)
}

// OverdueStore flags pending installments whose due date has passed.
type OverdueStore interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// PGOverdueStore is the pgx-backed OverdueStore.
type PGOverdueStore struct {
	Pool *pgxpool.Pool
}

// MarkOverdue transitions pending installments past their due date to
// "vencida" and returns how many rows changed.
func (s PGOverdueStore) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE cuotas
		SET estado = 'vencida'
		WHERE estado = 'pendiente' AND vencimiento < $1
	`, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// OverdueHandler processes the sweep task.
type OverdueHandler struct {
	Store  OverdueStore
	Logger zerolog.Logger
	Now    func() time.Time
}

// ProcessTask implements asynq.Handler.
func (h OverdueHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	flagged, err := h.Store.MarkOverdue(ctx, now())
	if err != nil {
		h.Logger.Error().Err(err).Msg("mark overdue installments")
		return err
	}
	if flagged > 0 {
		if obs.InstallmentsOverdueTotal != nil {
			obs.InstallmentsOverdueTotal.Add(float64(flagged))
		}
		h.Logger.Info().Int64("flagged", flagged).Msg("installments marked overdue")
	}
	return nil
}
