package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/repository"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/dates"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/matching"
)

// ErrDuplicateDonation reports that a donation id already has evidence
// on file. Callers surface it as a soft error, not a transport failure.
var ErrDuplicateDonation = errors.New("donation already has evidence on file")

const (
	defaultCurrency       = "PKR"
	defaultPaymentChannel = "Bank Transfer"
)

// Ledger supplies the credit rows a slip is matched against.
type Ledger interface {
	ListCredits() ([]models.BankTransaction, error)
}

// Results persists verification outcomes.
type Results interface {
	Upsert(v *models.VerificationResult) error
	List(f repository.ListFilter) ([]models.VerificationResult, error)
}

// Evidence persists uploaded slip files and their linkage.
type Evidence interface {
	UpsertForVerification(verificationID uuid.UUID, storagePath, status string) (*models.EvidenceRecord, error)
	FindByDonationID(donationID string) (*models.EvidenceRecord, error)
	InsertInbox(donationID, storagePath string) (*models.EvidenceRecord, error)
}

// Service runs slips through the matching engine and records both the
// outcome and any uploaded evidence file.
type Service struct {
	engine     *matching.Engine
	ledger     Ledger
	results    Results
	evidence   Evidence
	uploadsDir string
	log        zerolog.Logger
}

func NewService(engine *matching.Engine, ledger Ledger, results Results, evidence Evidence, uploadsDir string, log zerolog.Logger) *Service {
	return &Service{
		engine:     engine,
		ledger:     ledger,
		results:    results,
		evidence:   evidence,
		uploadsDir: uploadsDir,
		log:        log,
	}
}

// Verify matches the slip against the credit ledger and persists the
// outcome. Slips carrying a transaction id replace any earlier result
// for the same id.
func (s *Service) Verify(slip *matching.Slip) (*models.VerificationResult, *matching.Result, error) {
	credits, err := s.ledger.ListCredits()
	if err != nil {
		return nil, nil, fmt.Errorf("loading credit ledger: %w", err)
	}

	res := s.engine.Match(slip, credits)
	record := s.buildRecord(slip, res)
	if err := s.results.Upsert(record); err != nil {
		return nil, nil, fmt.Errorf("saving verification result: %w", err)
	}

	s.log.Info().
		Str("status", record.Status).
		Str("donor", record.DonorName).
		Int("checks_passed", record.ChecksPassed).
		Msg("slip verified")
	return record, res, nil
}

func (s *Service) buildRecord(slip *matching.Slip, res *matching.Result) *models.VerificationResult {
	record := &models.VerificationResult{
		ID:             uuid.New(),
		DonorName:      slip.SenderName,
		Status:         res.Status,
		Currency:       slip.Currency,
		PaymentChannel: slip.PaymentChannel,
		ChecksPassed:   res.ChecksPassed,
		ChecksFailed:   res.ChecksFailed,
	}
	if record.Currency == "" {
		record.Currency = defaultCurrency
	}
	if record.PaymentChannel == "" {
		record.PaymentChannel = defaultPaymentChannel
	}
	// The slip date is stored canonically so the date range filters on the
	// listing endpoint compare correctly. It stays empty when it never parsed.
	if d := dates.Normalize(slip.Date); d != nil {
		record.Date = d.String()
	}
	if !slip.Amount.IsZero() {
		amount := slip.Amount
		record.Amount = &amount
	}
	if ref := strings.TrimSpace(slip.TransactionID); ref != "" {
		record.ExternalReference = &ref
	}
	if res.Matched != nil {
		row := res.Matched.SheetRow
		record.SheetRow = &row
	}
	if res.Detail != nil {
		if blob, err := json.Marshal(res.Detail); err == nil {
			record.CheckDetails = datatypes.JSON(blob)
		}
	}
	return record
}

// AttachEvidence stores the uploaded slip file and links it to a
// verification result. Evidence already marked verified is immutable:
// the existing record is returned and the new upload is discarded.
func (s *Service) AttachEvidence(verificationID uuid.UUID, status, originalName string, file io.Reader) (*models.EvidenceRecord, error) {
	path, err := s.saveFile(time.Now().Format("20060102_150405"), originalName, file)
	if err != nil {
		return nil, err
	}

	evidenceStatus := models.EvidenceNotVerified
	if status == models.StatusVerified {
		evidenceStatus = models.EvidenceVerified
	}

	rec, err := s.evidence.UpsertForVerification(verificationID, path, evidenceStatus)
	if err != nil {
		return nil, fmt.Errorf("saving evidence record: %w", err)
	}
	if rec.StoragePath != path {
		// Existing verified evidence was reused; the fresh file is an
		// orphan and can go.
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("path", path).Msg("orphan evidence file not removed")
		}
	}
	return rec, nil
}

// StoreInboxEvidence stores a standalone evidence upload keyed by
// donation id, rejecting duplicates softly.
func (s *Service) StoreInboxEvidence(donationID, originalName string, file io.Reader) (*models.EvidenceRecord, error) {
	existing, err := s.evidence.FindByDonationID(donationID)
	if err != nil {
		return nil, fmt.Errorf("checking donation evidence: %w", err)
	}
	if existing != nil {
		return existing, ErrDuplicateDonation
	}

	path, err := s.saveFile(donationID, originalName, file)
	if err != nil {
		return nil, err
	}
	rec, err := s.evidence.InsertInbox(donationID, path)
	if err != nil {
		return nil, fmt.Errorf("saving evidence record: %w", err)
	}
	return rec, nil
}

func (s *Service) List(f repository.ListFilter) ([]models.VerificationResult, error) {
	return s.results.List(f)
}

// saveFile writes the upload under the uploads directory with a
// collision-free generated name, keeping the original extension.
func (s *Service) saveFile(prefix, originalName string, file io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating uploads dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s%s",
		prefix,
		strings.ReplaceAll(uuid.NewString(), "-", ""),
		filepath.Ext(originalName),
	)
	path := filepath.Join(s.uploadsDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating evidence file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing evidence file: %w", err)
	}
	return path, nil
}
