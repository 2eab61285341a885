package domain

import (
	"math"
	"strings"
)

// LoanStatus is a position in the origination pipeline
type LoanStatus string

const (
	LoanDraft               LoanStatus = "DRAFT"
	LoanSubmitted           LoanStatus = "SUBMITTED"
	LoanProcessing          LoanStatus = "PROCESSING"
	LoanUnderwriting        LoanStatus = "UNDERWRITING"
	LoanApprovedConditional LoanStatus = "APPROVED_CONDITIONAL"
	LoanClearToClose        LoanStatus = "CLEAR_TO_CLOSE"
	LoanClosed              LoanStatus = "CLOSED"
	LoanRejected            LoanStatus = "REJECTED"
	LoanWithdrawn           LoanStatus = "WITHDRAWN"
)

// LoanStatuses lists every recognized status in pipeline order
var LoanStatuses = []LoanStatus{
	LoanDraft,
	LoanSubmitted,
	LoanProcessing,
	LoanUnderwriting,
	LoanApprovedConditional,
	LoanClearToClose,
	LoanClosed,
	LoanRejected,
	LoanWithdrawn,
}

// TerminalLoanStatuses are the statuses that end the normal flow
var TerminalLoanStatuses = []LoanStatus{LoanClosed, LoanRejected, LoanWithdrawn}

// Valid reports whether s is a recognized status
func (s LoanStatus) Valid() bool {
	for _, v := range LoanStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is CLOSED, REJECTED or WITHDRAWN
func (s LoanStatus) IsTerminal() bool {
	for _, v := range TerminalLoanStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Label renders the status for humans, e.g. "CLEAR TO CLOSE"
func (s LoanStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// ParseLoanStatus upper-cases and validates a raw status string
func ParseLoanStatus(raw string) (LoanStatus, bool) {
	s := LoanStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// LoanType is the purpose of the mortgage
type LoanType string

const (
	LoanTypePurchase  LoanType = "PURCHASE"
	LoanTypeRefinance LoanType = "REFINANCE"
)

// Valid reports whether t is a known loan type
func (t LoanType) Valid() bool {
	return t == LoanTypePurchase || t == LoanTypeRefinance
}

// ============================================================
// State machine guards
// ============================================================

// CanAccessLoan is the loan record access policy: owner or staff
func CanAccessLoan(actor Actor, ownerID string) bool {
	return actor.IsStaff() || (actor.ID != "" && actor.ID == ownerID)
}

// CanEditContent reports whether actor may change application content in status.
// Staff may edit terminal loans to correct mistakes.
func CanEditContent(actor Actor, status LoanStatus) bool {
	return !status.IsTerminal() || actor.IsStaff()
}

// CanSubmit reports whether the owner may submit a loan in status
func CanSubmit(status LoanStatus) bool {
	return status == LoanDraft
}

// CanSetStatus reports whether actor may move a loan to target.
// Any recognized target is accepted; adjacency is not enforced.
func CanSetStatus(actor Actor, target LoanStatus) (allowed, validTarget bool) {
	return actor.IsStaff(), target.Valid()
}

// CanWithdraw reports whether the owner may withdraw a loan in status
func CanWithdraw(status LoanStatus) bool {
	return !status.IsTerminal()
}

// ============================================================
// Form data sections
// ============================================================

// PropertySection is the subject property part of the application
type PropertySection struct {
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty" validate:"omitempty,len=2"`
	Zip          string `json:"zip,omitempty"`
	PropertyType string `json:"propertyType,omitempty"`
	Occupancy    string `json:"occupancy,omitempty" validate:"omitempty,oneof=PRIMARY SECONDARY INVESTMENT"`
}

// PersonalSection is the borrower identity part of the application
type PersonalSection struct {
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	DateOfBirth   string `json:"dateOfBirth,omitempty"`
	Phone         string `json:"phone,omitempty"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
	Dependents    int    `json:"dependents,omitempty" validate:"gte=0"`
}

// IncomeSection is the employment and income part of the application
type IncomeSection struct {
	EmployerName  string  `json:"employerName,omitempty"`
	JobTitle      string  `json:"jobTitle,omitempty"`
	YearsEmployed float64 `json:"yearsEmployed,omitempty" validate:"gte=0"`
	MonthlyIncome float64 `json:"monthlyIncome,omitempty" validate:"gte=0"`
}

// AssetsSection is the bank account part of the application
type AssetsSection struct {
	BankName    string  `json:"bankName,omitempty"`
	AccountType string  `json:"accountType,omitempty"`
	Balance     float64 `json:"balance,omitempty" validate:"gte=0"`
}

// FormData is the structured application form, one optional value per section
type FormData struct {
	Property *PropertySection `json:"property,omitempty" validate:"omitempty"`
	Personal *PersonalSection `json:"personal,omitempty" validate:"omitempty"`
	Income   *IncomeSection   `json:"income,omitempty" validate:"omitempty"`
	Assets   *AssetsSection   `json:"assets,omitempty" validate:"omitempty"`
}

// Merge applies patch section by section. A present section replaces the stored
// one whole; absent sections are kept. It returns the names of replaced sections.
func (f *FormData) Merge(patch FormData) []string {
	var touched []string
	if patch.Property != nil {
		f.Property = patch.Property
		touched = append(touched, "property")
	}
	if patch.Personal != nil {
		f.Personal = patch.Personal
		touched = append(touched, "personal")
	}
	if patch.Income != nil {
		f.Income = patch.Income
		touched = append(touched, "income")
	}
	if patch.Assets != nil {
		f.Assets = patch.Assets
		touched = append(touched, "assets")
	}
	return touched
}

// ============================================================
// Risk assessment
// ============================================================

// PlaceholderMonthlyDebt stands in for bureau liabilities until a credit integration exists
const PlaceholderMonthlyDebt = 1500.0

// RiskLevel buckets the debt-to-income ratio
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskAssessment is the lender-facing DTI summary
type RiskAssessment struct {
	MonthlyIncome float64   `json:"monthlyIncome"`
	MonthlyDebt   float64   `json:"monthlyDebt"`
	DTI           float64   `json:"dti"`
	Level         RiskLevel `json:"level"`
}

// AssessRisk computes DTI against the placeholder debt. ok is false when no
// income section was provided.
func AssessRisk(f FormData) (assessment RiskAssessment, ok bool) {
	if f.Income == nil {
		return RiskAssessment{}, false
	}
	income := f.Income.MonthlyIncome
	a := RiskAssessment{MonthlyIncome: income, MonthlyDebt: PlaceholderMonthlyDebt}
	if income <= 0 {
		a.Level = RiskHigh
		return a, true
	}

	a.DTI = math.Round(PlaceholderMonthlyDebt/income*1000) / 10
	switch {
	case a.DTI > 43:
		a.Level = RiskHigh
	case a.DTI > 36:
		a.Level = RiskMedium
	default:
		a.Level = RiskLow
	}
	return a, true
}
