package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
)

// sagaStep шаг многошаговой операции без общей транзакции.
// Шаг с bestEffort выполняется после точки фиксации: его ошибка только логируется.
type sagaStep struct {
	name       string
	action     func(ctx context.Context) error
	compensate func(ctx context.Context) error
	bestEffort bool
}

type saga struct {
	name    string
	fields  logrus.Fields
	metrics *Metrics
	steps   []sagaStep
}

func newSaga(name string, fields logrus.Fields, metrics *Metrics) *saga {
	return &saga{name: name, fields: fields, metrics: metrics}
}

func (s *saga) step(name string, action, compensate func(ctx context.Context) error) *saga {
	s.steps = append(s.steps, sagaStep{name: name, action: action, compensate: compensate})
	return s
}

func (s *saga) tail(name string, action func(ctx context.Context) error) *saga {
	s.steps = append(s.steps, sagaStep{name: name, action: action, bestEffort: true})
	return s
}

// run выполняет шаги по порядку. При ошибке обязательного шага выполненные шаги
// компенсируются в обратном порядке, и возвращается исходная ошибка.
func (s *saga) run(ctx context.Context) error {
	done := make([]sagaStep, 0, len(s.steps))
	for _, st := range s.steps {
		if st.bestEffort {
			if err := st.action(context.WithoutCancel(ctx)); err != nil {
				logger.Log.WithFields(s.fields).WithFields(logrus.Fields{
					"saga": s.name,
					"step": st.name,
				}).WithError(err).Warn("saga: шаг после фиксации не выполнен, будет исправлен сверкой")
				s.metrics.tailFailed(s.name, st.name)
			}
			continue
		}

		if err := st.action(ctx); err != nil {
			logger.Log.WithFields(s.fields).WithFields(logrus.Fields{
				"saga": s.name,
				"step": st.name,
			}).WithError(err).Info("saga: шаг не выполнен, откат")
			s.rollback(ctx, done)
			return err
		}
		done = append(done, st)
	}
	return nil
}

func (s *saga) rollback(ctx context.Context, done []sagaStep) {
	cctx := context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(cctx); err != nil {
			logger.Log.WithFields(s.fields).WithFields(logrus.Fields{
				"saga": s.name,
				"step": st.name,
			}).WithError(err).Error("saga: компенсация не выполнена, требуется ручное вмешательство")
			s.metrics.compensation(s.name, st.name, false)
			continue
		}
		s.metrics.compensation(s.name, st.name, true)
	}
}
