package infra

import (
	"context"

	"go.uber.org/multierr"

	"anires-gateway/middleware/ratelimit/domain"
)

// TeeStatsStore repassa cada evento para todas as stores configuradas.
// Um erro em uma delas não impede o registro nas demais.
type TeeStatsStore []domain.StatsStore

// NewTeeStatsStore ignora stores nil e devolve a única store quando só há uma.
func NewTeeStatsStore(stores ...domain.StatsStore) domain.StatsStore {
	var out TeeStatsStore
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (t TeeStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var err error
	for _, s := range t {
		err = multierr.Append(err, s.Record(ctx, ev))
	}
	return err
}
