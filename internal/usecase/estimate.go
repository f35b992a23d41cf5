package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"leadgen-agent/internal/domain"
	"leadgen-agent/internal/logging"
)

const defaultPhoneRegion = "US"

// LeadRecord is one row of the durable estimate log.
type LeadRecord struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Service   string
	Message   string
	Page      string
	CreatedAt time.Time
}

type LeadLog interface {
	Record(ctx context.Context, lead LeadRecord) error
}

type EstimateInput struct {
	Name    string `validate:"required,max=120"`
	Email   string `validate:"required,email,max=254"`
	Phone   string `validate:"omitempty,max=40"`
	Service string `validate:"required,max=120"`
	Message string `validate:"omitempty,max=4000"`
	Page    string `validate:"omitempty,max=512"`
}

type EstimateOutput struct {
	LeadID string
}

// LeadService accepts estimate form submissions and call-click conversions
// and hands them to the notification queue.
type LeadService struct {
	queue       Enqueuer
	leads       LeadLog
	validate    *validator.Validate
	phoneRegion string
	log         *slog.Logger
	now         func() time.Time
}

type LeadOption func(*LeadService)

// WithLeadLog enables the durable lead log. Without it submissions go to the queue only.
func WithLeadLog(l LeadLog) LeadOption {
	return func(s *LeadService) { s.leads = l }
}

func WithLeadLogger(l *slog.Logger) LeadOption {
	return func(s *LeadService) { s.log = l }
}

func WithPhoneRegion(region string) LeadOption {
	return func(s *LeadService) {
		if r := strings.ToUpper(strings.TrimSpace(region)); r != "" {
			s.phoneRegion = r
		}
	}
}

func NewLeadService(queue Enqueuer, opts ...LeadOption) (*LeadService, error) {
	if queue == nil {
		return nil, errors.New("usecase: queue must not be nil")
	}
	s := &LeadService{
		queue:       queue,
		validate:    validator.New(),
		phoneRegion: defaultPhoneRegion,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDefault(s.log)
	return s, nil
}

// SubmitEstimate logs the lead and enqueues an estimate_request. The caller
// only sees a failure when neither the lead log nor the queue accepted it.
func (s *LeadService) SubmitEstimate(ctx context.Context, in EstimateInput) (EstimateOutput, error) {
	log := logging.FromContext(ctx, s.log)

	in = EstimateInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Service: strings.TrimSpace(in.Service),
		Message: strings.TrimSpace(in.Message),
		Page:    strings.TrimSpace(in.Page),
	}
	if err := s.validate.Struct(in); err != nil {
		return EstimateOutput{}, newError(ErrorInvalidInput, invalidReason(err), err)
	}
	in.Phone = NormalizePhone(in.Phone, s.phoneRegion)

	now := s.now().UTC()
	lead := LeadRecord{
		ID:        newUUID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Service:   in.Service,
		Message:   in.Message,
		Page:      in.Page,
		CreatedAt: now,
	}
	log = log.With("lead_id", lead.ID)

	logged := false
	var logErr error
	if s.leads != nil {
		if logErr = s.leads.Record(ctx, lead); logErr != nil {
			log.Warn("estimate lead not logged", "err", logErr)
		} else {
			logged = true
		}
	}

	queueErr := s.queue.Enqueue(ctx, domain.EstimateRequest{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Service:   in.Service,
		Message:   in.Message,
		Timestamp: now,
	})
	if queueErr != nil {
		if !logged {
			return EstimateOutput{}, newError(ErrorInternal, "estimate_not_accepted", errors.Join(logErr, queueErr))
		}
		log.Warn("estimate notification not enqueued", "err", queueErr)
	}

	return EstimateOutput{LeadID: lead.ID}, nil
}

// RecordCall enqueues a call_conversion for a click-to-call. Failures are
// logged only; the visitor is already dialing.
func (s *LeadService) RecordCall(ctx context.Context, page string) {
	err := s.queue.Enqueue(ctx, domain.CallConversion{
		Page:      strings.TrimSpace(page),
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		logging.FromContext(ctx, s.log).Warn("call conversion not enqueued", "page", page, "err", err)
	}
}

// NormalizePhone returns the E.164 form of raw, or raw unchanged when it
// does not parse as a valid number for region.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func invalidReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid_request"
	}
	fe := verrs[0]
	return strings.ToLower(fe.Field()) + "_" + fe.Tag()
}
