package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/config"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/jobs"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/dates"
)

// HostData carries the statement payload of a bank alert. ID is the
// bank's document identifier and deduplication key.
type HostData struct {
	MessageData string `json:"messageData"`
	ID          string `json:"id"`
}

// Alert is the webhook request body sent by the bank.
type Alert struct {
	UserID              string   `json:"userID"`
	Password            string   `json:"password"`
	ChannelType         *string  `json:"channelType"`
	ChannelSubType      *string  `json:"channelSubType"`
	TransactionDateTime string   `json:"transactionDateTime"`
	HostData            HostData `json:"hostData"`
}

// Response is the acknowledgement envelope. The bank treats any HTTP
// 200 as delivered and inspects StatusCode for the outcome.
type Response struct {
	StatusCode string `json:"statusCode"`
	StatusDesc string `json:"statusDesc"`
	ID         string `json:"id"`
	Stan       string `json:"stan"`
}

const (
	codeAccepted = "00"
	codeRejected = "01"

	descSuccess        = "success"
	descFail           = "fail"
	descInvalidChannel = "Invalid Channel Type or Subtype"
)

var errNotAuthenticated = errors.New("authentication failed")

// Ledger is the slice of transaction storage the ingestor needs.
type Ledger interface {
	InsertWebhookTransaction(tx *models.BankTransaction) (bool, error)
	StanByDocID(docID string) (string, bool, error)
	SetStanByDocID(docID, stan string) error
}

// Service accepts bank alerts, acknowledges them synchronously and
// builds the ledger record in the background.
type Service struct {
	cfg    *config.Config
	ledger Ledger
	queue  jobs.Queue
	log    zerolog.Logger

	// pending maps doc ids whose record build has not finished to the
	// stan issued for them, closing the window where a redelivery
	// arrives before the deferred insert lands.
	mu      sync.Mutex
	pending map[string]string
}

func NewService(cfg *config.Config, ledger Ledger, queue jobs.Queue, log zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		ledger:  ledger,
		queue:   queue,
		log:     log,
		pending: make(map[string]string),
	}
}

// Handle runs the alert through authentication, channel validation and
// duplicate detection, and queues record construction on acceptance.
// Every outcome is an HTTP 200 envelope; only the IP allow list, which
// the transport layer checks before calling Handle, yields a 403.
func (s *Service) Handle(authorization string, alert *Alert) *Response {
	if err := s.authenticate(authorization, alert); err != nil {
		s.log.Warn().Str("user_id", alert.UserID).Msg("alert authentication failed")
		return &Response{StatusCode: codeRejected, StatusDesc: descFail}
	}

	docID := alert.HostData.ID

	if !s.channelValid(alert) {
		s.log.Warn().Str("doc_id", docID).Msg("alert channel validation failed")
		return &Response{
			StatusCode: codeRejected,
			StatusDesc: descInvalidChannel,
			ID:         docID,
			Stan:       uuid.NewString(),
		}
	}

	s.mu.Lock()
	if stan, inFlight := s.pending[docID]; inFlight {
		s.mu.Unlock()
		s.log.Info().Str("doc_id", docID).Msg("duplicate alert while record build in flight")
		return &Response{StatusCode: codeRejected, StatusDesc: descFail, ID: docID, Stan: stan}
	}
	s.mu.Unlock()

	// Synchronous duplicate check so redeliveries get back the stan
	// they were issued the first time. A storage error here must not
	// block an otherwise valid alert, so we fall through to accept.
	if stan, found, err := s.ledger.StanByDocID(docID); err != nil {
		s.log.Error().Err(err).Str("doc_id", docID).Msg("duplicate check failed, accepting alert")
	} else if found {
		if stan == "" {
			stan = uuid.NewString()
			if err := s.ledger.SetStanByDocID(docID, stan); err != nil {
				s.log.Error().Err(err).Str("doc_id", docID).Msg("stan backfill failed")
			}
		}
		s.log.Info().Str("doc_id", docID).Msg("duplicate alert, returning original stan")
		return &Response{StatusCode: codeRejected, StatusDesc: descFail, ID: docID, Stan: stan}
	}

	stan := uuid.NewString()
	hostData := alert.HostData
	txDateTime := alert.TransactionDateTime

	if prev, claimed := s.claimPending(docID, stan); !claimed {
		s.log.Info().Str("doc_id", docID).Msg("duplicate alert while record build in flight")
		return &Response{StatusCode: codeRejected, StatusDesc: descFail, ID: docID, Stan: prev}
	}

	queued := s.queue.Enqueue(jobs.Task{
		Key: "webhook:" + docID,
		Run: func(ctx context.Context) {
			defer s.clearPending(docID, stan)
			s.buildRecord(hostData, txDateTime, stan)
		},
	})
	if !queued {
		s.clearPending(docID, stan)
		s.log.Error().Str("doc_id", docID).Msg("alert dropped, task queue refused it")
	}

	return &Response{StatusCode: codeAccepted, StatusDesc: descSuccess, ID: docID, Stan: stan}
}

// claimPending registers the stan for a doc id unless another request
// holds it. The check at the top of Handle is only a fast path; two
// deliveries can both pass it before either claims, and this atomic
// claim is what resolves them to a single stan.
func (s *Service) claimPending(docID, stan string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, inFlight := s.pending[docID]; inFlight {
		return prev, false
	}
	s.pending[docID] = stan
	return "", true
}

// clearPending releases the doc id only while it still carries the given
// stan, so a refused enqueue never erases a later request's claim.
func (s *Service) clearPending(docID, stan string) {
	s.mu.Lock()
	if s.pending[docID] == stan {
		delete(s.pending, docID)
	}
	s.mu.Unlock()
}

func (s *Service) authenticate(authorization string, alert *Alert) error {
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || strings.TrimSpace(token) != s.cfg.BearerToken || s.cfg.BearerToken == "" {
		return errNotAuthenticated
	}
	if alert.UserID != s.cfg.WebhookUser || alert.Password != s.cfg.WebhookPass {
		return errNotAuthenticated
	}
	return nil
}

func (s *Service) channelValid(alert *Alert) bool {
	if alert.ChannelType == nil || alert.ChannelSubType == nil {
		return false
	}
	return *alert.ChannelType == s.cfg.ChannelType && *alert.ChannelSubType == s.cfg.ChannelSubType
}

// buildRecord turns the raw alert payload into a ledger row. The raw
// messageData is preserved verbatim as the description.
func (s *Service) buildRecord(hostData HostData, transactionDateTime, stan string) {
	if hostData.ID == "" || hostData.MessageData == "" {
		s.log.Error().Str("doc_id", hostData.ID).Msg("alert payload incomplete, skipping")
		return
	}

	valueDateRaw, credit, ok := parseMessageData(hostData.MessageData)
	if !ok {
		s.log.Error().Str("doc_id", hostData.ID).Msg("unparseable messageData, skipping")
		return
	}

	valueDate := dates.Normalize(valueDateRaw)
	booking := dates.Normalize(transactionDateTime)
	if booking == nil {
		booking = valueDate
	}
	if booking != nil && !booking.HasTime() {
		booking = booking.AtMidnight()
	}

	docID := hostData.ID
	tx := &models.BankTransaction{
		DocID:       &docID,
		Stan:        stan,
		Description: hostData.MessageData,
		Credit:      credit,
	}
	if valueDate != nil {
		v := valueDate.String()
		tx.ValueDate = &v
	}
	if booking != nil {
		b := booking.String()
		tx.BookingDate = &b
	}

	inserted, err := s.ledger.InsertWebhookTransaction(tx)
	switch {
	case err != nil:
		s.log.Error().Err(err).Str("doc_id", docID).Msg("alert record insert failed")
	case !inserted:
		s.log.Info().Str("doc_id", docID).Msg("alert record already stored")
	default:
		s.log.Info().Str("doc_id", docID).Str("stan", stan).Msg("alert record stored")
	}
}

// parseMessageData reads the value date from the first comma-separated
// field and the credit amount from the last. A payload with fewer than
// two fields is unusable.
func parseMessageData(messageData string) (valueDate string, credit *decimal.Decimal, ok bool) {
	parts := strings.Split(messageData, ",")
	if len(parts) < 2 {
		return "", nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	raw := parts[len(parts)-1]
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.ReplaceAll(raw, " ", "")
	if d, err := decimal.NewFromString(raw); err == nil {
		credit = &d
	}
	return parts[0], credit, true
}
