package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/observability"
)

type instrumentedStore struct {
	backend string
	inner   Store
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// Instrumented records latency, status and a span for every call on inner.
func Instrumented(inner Store, backend string, metrics *observability.Metrics) Store {
	if inner == nil {
		return nil
	}
	return &instrumentedStore{
		backend: backend,
		inner:   inner,
		metrics: metrics,
		tracer:  otel.Tracer("retroboard/store"),
	}
}

func (s *instrumentedStore) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs, attribute.String("store.backend", s.backend))
	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (s *instrumentedStore) finish(span trace.Span, op string, err error, began time.Time) {
	status := "ok"
	if err != nil {
		status = string(domain.CodeOf(err))
		if status == "" {
			status = "error"
		}
		if !domain.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
	s.metrics.ObserveStoreOperation(s.backend, op, status, time.Since(began))
}

func retroAttr(id uuid.UUID) attribute.KeyValue {
	return attribute.String("retro.id", id.String())
}

func (s *instrumentedStore) GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error) {
	ctx, span, began := s.start(ctx, OpGetRetro, retroAttr(id))
	out, err := s.inner.GetRetro(ctx, id)
	s.finish(span, OpGetRetro, err, began)
	return out, err
}

func (s *instrumentedStore) ListRetros(ctx context.Context) ([]*domain.Retro, error) {
	ctx, span, began := s.start(ctx, OpListRetros)
	out, err := s.inner.ListRetros(ctx)
	span.SetAttributes(attribute.Int("store.results", len(out)))
	s.finish(span, OpListRetros, err, began)
	return out, err
}

func (s *instrumentedStore) CreateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	ctx, span, began := s.start(ctx, OpCreateRetro, retroAttr(retro.ID))
	out, err := s.inner.CreateRetro(ctx, retro)
	s.finish(span, OpCreateRetro, err, began)
	return out, err
}

func (s *instrumentedStore) UpdateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	ctx, span, began := s.start(ctx, OpUpdateRetro, retroAttr(retro.ID), attribute.Int64("retro.version", retro.Version))
	out, err := s.inner.UpdateRetro(ctx, retro)
	s.finish(span, OpUpdateRetro, err, began)
	return out, err
}

func (s *instrumentedStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, span, began := s.start(ctx, OpGetUser, attribute.String("user.id", id.String()))
	out, err := s.inner.GetUser(ctx, id)
	s.finish(span, OpGetUser, err, began)
	return out, err
}

func (s *instrumentedStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	ctx, span, began := s.start(ctx, OpListUsers)
	out, err := s.inner.ListUsers(ctx)
	s.finish(span, OpListUsers, err, began)
	return out, err
}

func (s *instrumentedStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, span, began := s.start(ctx, OpCreateUser)
	out, err := s.inner.CreateUser(ctx, user)
	s.finish(span, OpCreateUser, err, began)
	return out, err
}

func (s *instrumentedStore) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, span, began := s.start(ctx, OpUpdateUser, attribute.String("user.id", user.ID.String()))
	out, err := s.inner.UpdateUser(ctx, user)
	s.finish(span, OpUpdateUser, err, began)
	return out, err
}

func (s *instrumentedStore) ValidateUser(ctx context.Context, username string) (*domain.User, error) {
	ctx, span, began := s.start(ctx, OpValidateUser)
	out, err := s.inner.ValidateUser(ctx, username)
	s.finish(span, OpValidateUser, err, began)
	return out, err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	ctx, span, began := s.start(ctx, OpPing)
	err := s.inner.Ping(ctx)
	s.finish(span, OpPing, err, began)
	return err
}

func (s *instrumentedStore) Close() error { return s.inner.Close() }
