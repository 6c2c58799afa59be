package tenant

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/backoffice/saas/internal/domain/shared"
)

// Status represents the lifecycle state of a tenant
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// TrialDays is the length of the trial granted on sign-up
const TrialDays = 14

var transitions = map[Status][]Status{
	StatusTrial:     {StatusActive, StatusSuspended, StatusCancelled},
	StatusActive:    {StatusSuspended, StatusCancelled},
	StatusSuspended: {StatusActive, StatusCancelled},
	StatusCancelled: {StatusActive},
}

// CanTransitionTo reports whether s may move to next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	taxIDPattern    = regexp.MustCompile(`^[0-9]{8,15}$`)
)

// Settings holds per-tenant preferences
type Settings struct {
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
	Timezone string `json:"timezone"`
}

// DefaultSettings returns the settings applied to new tenants
func DefaultSettings() Settings {
	return Settings{
		Currency: "PEN",
		Locale:   "es-PE",
		Timezone: "America/Lima",
	}
}

func (s Settings) validate() error {
	if !currencyPattern.MatchString(s.Currency) {
		return shared.InvalidInput("currency must be a 3-letter ISO-4217 code")
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return shared.InvalidInput("unknown timezone %q", s.Timezone)
		}
	}
	if len(s.Locale) > 20 {
		return shared.InvalidInput("locale cannot exceed 20 characters")
	}
	return nil
}

// Tenant is an isolated customer organization.
// It is the aggregate root for plan, lifecycle and storage accounting.
type Tenant struct {
	shared.BaseAggregateRoot
	Name              string
	Slug              string
	Email             string
	LegalName         string
	TaxID             string
	Status            Status
	PlanCode          PlanCode
	TrialEndsAt       *time.Time
	PlanExpiresAt     *time.Time
	Settings          Settings
	StorageQuotaBytes int64
	StorageUsedBytes  int64
	StatusReason      string
}

// NewTenant creates a tenant on a free trial
func NewTenant(name, email string, settings Settings) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	slug := shared.Slugify(name)
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	settings.Currency = strings.ToUpper(settings.Currency)
	if settings.Currency == "" {
		settings.Currency = DefaultSettings().Currency
	}
	if settings.Locale == "" {
		settings.Locale = DefaultSettings().Locale
	}
	if settings.Timezone == "" {
		settings.Timezone = DefaultSettings().Timezone
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}

	free, _ := LookupPlan(PlanFree)
	trialEnds := time.Now().UTC().AddDate(0, 0, TrialDays)
	t := &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Slug:              slug,
		Email:             email,
		Status:            StatusTrial,
		PlanCode:          PlanFree,
		TrialEndsAt:       &trialEnds,
		Settings:          settings,
		StorageQuotaBytes: free.MaxStorageBytes,
	}
	t.AddDomainEvent(newTenantCreatedEvent(t))
	return t, nil
}

// ValidateSlug checks slug length and shape
func ValidateSlug(slug string) error {
	if len(slug) < 3 || len(slug) > 63 {
		return shared.InvalidInput("slug must be between 3 and 63 characters")
	}
	if !shared.IsValidSlug(slug) {
		return shared.InvalidInput("slug may only contain lower-case letters, digits and dashes")
	}
	return nil
}

// SetSlug replaces the generated slug
func (t *Tenant) SetSlug(slug string) error {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	t.Slug = slug
	t.IncrementVersion()
	return nil
}

// Update changes the descriptive fields of the tenant
func (t *Tenant) Update(name, email, legalName, taxID string, settings Settings) error {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return err
	}
	if taxID != "" && !taxIDPattern.MatchString(taxID) {
		return shared.InvalidInput("tax id must be 8 to 15 digits")
	}
	if utf8.RuneCountInString(legalName) > 200 {
		return shared.InvalidInput("legal name cannot exceed 200 characters")
	}
	settings.Currency = strings.ToUpper(settings.Currency)
	if err := settings.validate(); err != nil {
		return err
	}

	t.Name = name
	t.Email = email
	t.LegalName = strings.TrimSpace(legalName)
	t.TaxID = taxID
	t.Settings = settings
	t.IncrementVersion()
	return nil
}

// ChangePlan moves the tenant to plan, valid until expiresAt.
// A nil expiry means the plan does not lapse.
func (t *Tenant) ChangePlan(code PlanCode, expiresAt *time.Time) error {
	plan, ok := LookupPlan(code)
	if !ok {
		return shared.InvalidInput("unknown plan %q", code)
	}
	old := t.PlanCode
	t.PlanCode = plan.Code
	t.PlanExpiresAt = expiresAt
	t.StorageQuotaBytes = plan.MaxStorageBytes
	t.IncrementVersion()
	if old != plan.Code {
		t.AddDomainEvent(newTenantPlanChangedEvent(t, old))
	}
	return nil
}

// Plan returns the tenant's current plan definition
func (t *Tenant) Plan() Plan {
	p, ok := LookupPlan(t.PlanCode)
	if !ok {
		p, _ = LookupPlan(PlanFree)
	}
	return p
}

func (t *Tenant) transition(next Status, reason string) error {
	if !t.Status.CanTransitionTo(next) {
		return shared.InvalidState("tenant cannot move from %s to %s", t.Status, next)
	}
	old := t.Status
	t.Status = next
	t.StatusReason = reason
	if next == StatusActive {
		t.TrialEndsAt = nil
	}
	t.IncrementVersion()
	t.AddDomainEvent(newTenantStatusChangedEvent(t, old, reason))
	return nil
}

// Activate moves a trial or suspended tenant to active
func (t *Tenant) Activate() error {
	return t.transition(StatusActive, "")
}

// Suspend blocks the tenant, e.g. after failed payments
func (t *Tenant) Suspend(reason string) error {
	return t.transition(StatusSuspended, reason)
}

// Cancel closes the tenant account
func (t *Tenant) Cancel(reason string) error {
	return t.transition(StatusCancelled, reason)
}

// Reactivate reopens a cancelled tenant
func (t *Tenant) Reactivate() error {
	if t.Status != StatusCancelled {
		return shared.InvalidState("only cancelled tenants can be reactivated")
	}
	return t.transition(StatusActive, "reactivated")
}

// IsOperational reports whether the tenant may use the service at now
func (t *Tenant) IsOperational(now time.Time) bool {
	switch t.Status {
	case StatusActive:
		return true
	case StatusTrial:
		return t.TrialEndsAt != nil && now.Before(*t.TrialEndsAt)
	default:
		return false
	}
}

// CheckStorage fails with QUOTA_EXCEEDED when storing bytes more would
// exceed the plan quota.
func (t *Tenant) CheckStorage(bytes int64) error {
	if bytes < 0 {
		return shared.InvalidInput("size cannot be negative")
	}
	if !Allows(t.StorageQuotaBytes, t.StorageUsedBytes, bytes) {
		return shared.QuotaExceeded("storage quota of %d bytes exceeded", t.StorageQuotaBytes).
			WithDetail("used_bytes", t.StorageUsedBytes).
			WithDetail("requested_bytes", bytes)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return shared.InvalidInput("tenant name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 200 {
		return shared.InvalidInput("tenant name cannot exceed 200 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return shared.InvalidInput("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return shared.InvalidInput("invalid email address %q", email)
	}
	return nil
}
