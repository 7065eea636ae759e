package adjustment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/evolury/estoque/internal/auth"
	"github.com/evolury/estoque/internal/currency"
	"github.com/evolury/estoque/internal/shared"
	"github.com/evolury/estoque/internal/webhook"
)

const (
	msgSuccess       = "Ajuste de estoque enviado com sucesso ao n8n!"
	msgUnauthorized  = "Falha de autenticação no webhook. Verifique as credenciais de acesso."
	msgSKUNotFound   = "SKU não encontrado na base de produtos."
	msgInFlight      = "Já existe um envio em andamento. Aguarde a resposta."
	msgGenericStatus = "Erro ao enviar. Código: %d. Verifique o n8n."
	msgTransport     = "Falha na conexão: %s"

	timestampLayout = "2006-01-02T15:04:05.000Z"
	snapshotLayout  = "02/01/2006 15:04:05"
)

// OutcomeKind classifies a submission attempt.
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeInvalid      OutcomeKind = "invalid"
	OutcomeInFlight     OutcomeKind = "in_flight"
	OutcomeUnauthorized OutcomeKind = "unauthorized"
	OutcomeNotFound     OutcomeKind = "not_found"
	OutcomeRejected     OutcomeKind = "rejected"
	OutcomeTransport    OutcomeKind = "transport"
)

// Outcome is the user facing result of one submission attempt. Every
// failure is terminal for the attempt.
type Outcome struct {
	Kind       OutcomeKind
	Message    string
	StatusCode int
	Payload    Payload
	Snapshot   *Snapshot
}

// Success reports whether the webhook accepted the payload.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeSuccess
}

// Poster delivers payloads to the webhook.
type Poster interface {
	Post(ctx context.Context, body any) (*webhook.Response, error)
}

// Locker guards against concurrent submissions of one session.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Recorder counts submission outcomes.
type Recorder interface {
	ObserveSubmission(variant, outcome string)
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	Formatter *currency.Formatter
	Location  *time.Location
	// LockTTL bounds how long a crashed submission keeps its session locked.
	LockTTL time.Duration
}

// Service submits adjustment forms.
type Service struct {
	poster   Poster
	locker   Locker
	recorder Recorder
	clock    clockwork.Clock
	logger   *slog.Logger
	config   ServiceConfig
}

// NewService constructs a Service. locker and recorder may be nil.
func NewService(poster Poster, locker Locker, recorder Recorder, clock clockwork.Clock, logger *slog.Logger, cfg ServiceConfig) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Formatter == nil {
		cfg.Formatter = currency.NewFormatter(currency.DefaultLocale)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &Service{poster: poster, locker: locker, recorder: recorder, clock: clock, logger: logger, config: cfg}
}

// Formatter exposes the currency formatter used for prices.
func (s *Service) Formatter() *currency.Formatter {
	return s.config.Formatter
}

// BuildPayload normalizes a validated form into the webhook payload.
func BuildPayload(form Form, user auth.User, now time.Time) Payload {
	return Payload{
		SKU:         form.SKU,
		Kind:        form.Kind,
		Warehouse:   form.Warehouse,
		Responsible: user.Responsible(),
		Quantity:    form.quantity,
		Price:       form.price,
		Note:        form.Note,
		Timestamp:   now.UTC().Format(timestampLayout),
	}
}

// RecordInvalid counts a form rejected by local validation.
func (s *Service) RecordInvalid(variant Variant) {
	s.observe(variant, OutcomeInvalid)
}

// Submit posts a validated form and interprets the webhook answer. lockKey
// identifies the submitting session; an empty key skips the guard.
func (s *Service) Submit(ctx context.Context, variant Variant, form Form, user auth.User, lockKey string) Outcome {
	if s.locker != nil && lockKey != "" {
		release, err := s.locker.Acquire(ctx, lockKey, s.config.LockTTL)
		if err != nil {
			if errors.Is(err, shared.ErrSubmissionInFlight) {
				return s.finish(variant, Outcome{Kind: OutcomeInFlight, Message: msgInFlight})
			}
			// The guard is best effort; a Redis hiccup must not block stock entries.
			s.logger.Warn("submission lock unavailable", slog.Any("error", err))
		} else {
			defer release()
		}
	}

	now := s.clock.Now()
	payload := BuildPayload(form, user, now)
	resp, err := s.poster.Post(ctx, payload)
	if err != nil {
		s.logger.Warn("webhook transport failure", slog.String("sku", payload.SKU), slog.Any("error", err))
		return s.finish(variant, Outcome{Kind: OutcomeTransport, Message: fmt.Sprintf(msgTransport, transportReason(err)), Payload: payload})
	}

	out := interpret(variant, resp)
	out.Payload = payload
	if out.Success() {
		s.logger.Info("adjustment submitted",
			slog.String("variant", string(variant)),
			slog.String("sku", payload.SKU),
			slog.String("tipo_lancamento", string(payload.Kind)),
			slog.String("responsavel", payload.Responsible),
			slog.Int("status", resp.StatusCode))
		if variant == VariantBalance {
			out.Snapshot = s.snapshot(payload, form, now)
		}
	} else {
		s.logger.Warn("webhook rejected adjustment",
			slog.String("variant", string(variant)),
			slog.String("sku", payload.SKU),
			slog.Int("status", resp.StatusCode))
	}
	return s.finish(variant, out)
}

func transportReason(err error) string {
	var transportErr *webhook.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Reason()
	}
	return err.Error()
}

func interpret(variant Variant, resp *webhook.Response) Outcome {
	out := Outcome{StatusCode: resp.StatusCode}
	switch {
	case resp.OK():
		out.Kind = OutcomeSuccess
		out.Message = msgSuccess
	case resp.StatusCode == http.StatusUnauthorized:
		out.Kind = OutcomeUnauthorized
		out.Message = msgUnauthorized
	case resp.StatusCode == http.StatusNotFound && variant == VariantBalance:
		out.Kind = OutcomeNotFound
		out.Message = msgSKUNotFound
	default:
		out.Kind = OutcomeRejected
		if detail := webhook.ExtractMessage(resp.Body, webhook.MaxMessageLength); detail != "" {
			out.Message = fmt.Sprintf("Erro %d: %s", resp.StatusCode, detail)
		} else {
			out.Message = fmt.Sprintf(msgGenericStatus, resp.StatusCode)
		}
	}
	return out
}

func (s *Service) snapshot(payload Payload, form Form, now time.Time) *Snapshot {
	return &Snapshot{
		Payload:        payload,
		WarehouseLabel: WarehouseLabel(payload.Warehouse),
		Quantity:       formatQuantity(payload.Quantity),
		Price:          s.config.Formatter.Format(form.priceCents),
		SubmittedAt:    now.In(s.config.Location).Format(snapshotLayout),
	}
}

func (s *Service) finish(variant Variant, out Outcome) Outcome {
	s.observe(variant, out.Kind)
	return out
}

func (s *Service) observe(variant Variant, kind OutcomeKind) {
	if s.recorder != nil {
		s.recorder.ObserveSubmission(string(variant), string(kind))
	}
}
