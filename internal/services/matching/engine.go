package matching

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/models"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/dates"
	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/extract"
)

// amountTolerance is the maximum absolute difference between the slip
// amount and a statement credit for the two to be considered equal.
var amountTolerance = decimal.RequireFromString("0.01")

// Slip holds the fields extracted from a donor payment slip. Zero or
// empty fields mean the extractor could not read that field.
type Slip struct {
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Date                 string          `json:"date"`
	SenderName           string          `json:"sender_name"`
	SenderAccountLast4   string          `json:"sender_account_last4"`
	SenderPhone          string          `json:"sender_phone"`
	ReceiverName         string          `json:"receiver_name"`
	ReceiverAccountLast4 string          `json:"receiver_account_last4"`
	TransactionID        string          `json:"transaction_id"`
	PaymentChannel       string          `json:"payment_channel"`
}

// CheckDetail records the per-criterion outcome against the matched
// statement row. It is persisted verbatim as the explain blob.
type CheckDetail struct {
	AmountMatch     bool   `json:"amount_match"`
	DateMatch       bool   `json:"date_match"`
	NameMatch       bool   `json:"name_match"`
	AccountMatch    bool   `json:"account_match"`
	ReferenceMatch  bool   `json:"reference_match"`
	StatementName   string `json:"statement_sender_name,omitempty"`
	StatementPhone  string `json:"statement_phone,omitempty"`
	StatementSTAN   string `json:"statement_reference,omitempty"`
	StatementDocID  string `json:"statement_doc_id,omitempty"`
	StatementCredit string `json:"statement_credit,omitempty"`
}

// Result is the outcome of matching one slip against the credit ledger.
type Result struct {
	Status       string
	ChecksPassed int
	ChecksFailed int
	Matched      *models.BankTransaction
	SlipDate     *dates.Canonical
	Detail       *CheckDetail
}

// Engine decides whether a payment slip corresponds to a statement
// credit. It is stateless and safe for concurrent use.
type Engine struct {
	orgName       string
	receiverLast4 string
}

func NewEngine(organizationName, receiverLast4 string) *Engine {
	return &Engine{orgName: organizationName, receiverLast4: receiverLast4}
}

// Match runs the receiver pre-checks and then scans candidates in their
// stored order, returning on the first row that passes every required
// criterion.
func (e *Engine) Match(slip *Slip, candidates []models.BankTransaction) *Result {
	if !receiverNameMatches(slip.ReceiverName, e.orgName) {
		return &Result{Status: models.StatusWrongReceiver, ChecksFailed: 2}
	}
	if slip.ReceiverAccountLast4 != e.receiverLast4 {
		return &Result{Status: models.StatusWrongReceiver, ChecksFailed: 2}
	}

	slipDate := dates.Normalize(slip.Date)
	if slipDate == nil {
		return &Result{Status: models.StatusDateParseError, ChecksFailed: 1}
	}

	for i := range candidates {
		row := &candidates[i]
		detail, ok := e.evaluate(slip, slipDate, row)
		if !ok {
			continue
		}
		passed := 4
		if detail.ReferenceMatch {
			passed++
		}
		return &Result{
			Status:       models.StatusVerified,
			ChecksPassed: passed,
			Matched:      row,
			SlipDate:     slipDate,
			Detail:       detail,
		}
	}
	return &Result{Status: models.StatusNotFound, ChecksFailed: 4, SlipDate: slipDate}
}

func (e *Engine) evaluate(slip *Slip, slipDate *dates.Canonical, row *models.BankTransaction) (*CheckDetail, bool) {
	if row.Credit == nil || !row.Credit.IsPositive() {
		return nil, false
	}
	if row.Credit.Sub(slip.Amount).Abs().GreaterThanOrEqual(amountTolerance) {
		return nil, false
	}

	rowDate := dates.Normalize(row.StatementDate())
	if rowDate == nil || !rowDate.SameDay(slipDate) {
		return nil, false
	}

	fields := extract.FromDescription(row.Description)
	if !namesOverlap(slip.SenderName, fields.SenderName) {
		return nil, false
	}
	if !identityMatches(slip, row.Description, fields.Phone) {
		return nil, false
	}

	detail := &CheckDetail{
		AmountMatch:    true,
		DateMatch:      true,
		NameMatch:      true,
		AccountMatch:   true,
		ReferenceMatch: referenceMatches(slip.TransactionID, fields.Reference),
		StatementName:  fields.SenderName,
		StatementPhone: fields.Phone,
		StatementSTAN:  fields.Reference,
	}
	if row.DocID != nil {
		detail.StatementDocID = *row.DocID
	}
	detail.StatementCredit = row.Credit.StringFixed(2)
	return detail, true
}

// receiverNameMatches treats hyphens as spaces and ignores case so that
// "Al-Khidmat" and "al khidmat" compare equal.
func receiverNameMatches(receiver, org string) bool {
	return strings.Contains(foldName(receiver), foldName(org))
}

func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// namesOverlap requires a non-empty word intersection covering at least
// half of the slip sender's words.
func namesOverlap(slipName, statementName string) bool {
	slipWords := strings.Fields(strings.ToLower(strings.TrimSpace(slipName)))
	stmtWords := strings.Fields(strings.ToLower(strings.TrimSpace(statementName)))
	if len(slipWords) == 0 || len(stmtWords) == 0 {
		return false
	}
	seen := make(map[string]bool, len(stmtWords))
	for _, w := range stmtWords {
		seen[w] = true
	}
	common := 0
	for _, w := range slipWords {
		if seen[w] {
			common++
		}
	}
	return common > 0 && float64(common) >= float64(len(slipWords))*0.5
}

// identityMatches accepts either the sender's account tail appearing in
// the raw description or the slip phone appearing inside the extracted
// statement phone.
func identityMatches(slip *Slip, description, statementPhone string) bool {
	if slip.SenderAccountLast4 != "" && strings.Contains(description, slip.SenderAccountLast4) {
		return true
	}
	if slip.SenderPhone != "" && statementPhone != "" && strings.Contains(statementPhone, slip.SenderPhone) {
		return true
	}
	return false
}

// referenceMatches is advisory: both sides must be present and one must
// contain the other.
func referenceMatches(slipRef, statementRef string) bool {
	slipRef = strings.TrimSpace(slipRef)
	if slipRef == "" || statementRef == "" {
		return false
	}
	return strings.Contains(statementRef, slipRef) || strings.Contains(slipRef, statementRef)
}
