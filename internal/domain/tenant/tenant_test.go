package tenant

import (
	"errors"
	"testing"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTenant(t *testing.T) *Tenant {
	t.Helper()
	tn, err := NewTenant("Panadería San José", "Owner@Example.com", Settings{})
	require.NoError(t, err)
	tn.ClearDomainEvents()
	return tn
}

func TestNewTenant(t *testing.T) {
	t.Run("starts on a free trial", func(t *testing.T) {
		tn, err := NewTenant("Panadería San José", "Owner@Example.com", Settings{Currency: "usd"})
		require.NoError(t, err)

		assert.Equal(t, "panaderia-san-jose", tn.Slug)
		assert.Equal(t, "owner@example.com", tn.Email)
		assert.Equal(t, StatusTrial, tn.Status)
		assert.Equal(t, PlanFree, tn.PlanCode)
		assert.Equal(t, "USD", tn.Settings.Currency)
		assert.Equal(t, "America/Lima", tn.Settings.Timezone)
		require.NotNil(t, tn.TrialEndsAt)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, TrialDays), *tn.TrialEndsAt, time.Minute)
		assert.Equal(t, 100*mb, tn.StorageQuotaBytes)

		events := tn.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeTenantCreated, events[0].EventType())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewTenant("  ", "a@b.co", Settings{})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("rejects bad email", func(t *testing.T) {
		_, err := NewTenant("Acme", "not-an-email", Settings{})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("rejects names that slugify too short", func(t *testing.T) {
		_, err := NewTenant("!!", "a@b.co", Settings{})
		assert.Error(t, err)
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		_, err := NewTenant("Acme Corp", "a@b.co", Settings{Timezone: "Mars/Olympus"})
		assert.Error(t, err)
	})
}

func TestTenant_Lifecycle(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		action  func(*Tenant) error
		want    Status
		wantErr bool
	}{
		{"trial to active", StatusTrial, (*Tenant).Activate, StatusActive, false},
		{"trial to suspended", StatusTrial, func(t *Tenant) error { return t.Suspend("fraud") }, StatusSuspended, false},
		{"active to cancelled", StatusActive, func(t *Tenant) error { return t.Cancel("churn") }, StatusCancelled, false},
		{"suspended to active", StatusSuspended, (*Tenant).Activate, StatusActive, false},
		{"cancelled to active via reactivate", StatusCancelled, (*Tenant).Reactivate, StatusActive, false},
		{"active to active", StatusActive, (*Tenant).Activate, StatusActive, true},
		{"cancelled to suspended", StatusCancelled, func(t *Tenant) error { return t.Suspend("x") }, StatusCancelled, true},
		{"reactivate active", StatusActive, (*Tenant).Reactivate, StatusActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tn := newTestTenant(t)
			tn.Status = tt.from

			err := tt.action(tn)
			if tt.wantErr {
				assert.True(t, errors.Is(err, shared.ErrInvalidState))
				assert.Empty(t, tn.GetDomainEvents())
			} else {
				require.NoError(t, err)
				require.Len(t, tn.GetDomainEvents(), 1)
				ev := tn.GetDomainEvents()[0].(*TenantStatusChangedEvent)
				assert.Equal(t, tt.from, ev.OldStatus)
				assert.Equal(t, tt.want, ev.NewStatus)
			}
			assert.Equal(t, tt.want, tn.Status)
		})
	}
}

func TestTenant_ActivateClearsTrial(t *testing.T) {
	tn := newTestTenant(t)
	require.NoError(t, tn.Activate())
	assert.Nil(t, tn.TrialEndsAt)
}

func TestTenant_IsOperational(t *testing.T) {
	now := time.Now()
	tn := newTestTenant(t)

	assert.True(t, tn.IsOperational(now))
	assert.False(t, tn.IsOperational(now.AddDate(0, 0, TrialDays+1)))

	tn.Status = StatusSuspended
	assert.False(t, tn.IsOperational(now))

	tn.Status = StatusActive
	assert.True(t, tn.IsOperational(now.AddDate(5, 0, 0)))
}

func TestTenant_ChangePlan(t *testing.T) {
	tn := newTestTenant(t)
	expires := time.Now().AddDate(0, 1, 0)

	require.NoError(t, tn.ChangePlan(PlanPro, &expires))
	assert.Equal(t, PlanPro, tn.PlanCode)
	assert.Equal(t, 10*gb, tn.StorageQuotaBytes)
	assert.Equal(t, &expires, tn.PlanExpiresAt)
	require.Len(t, tn.GetDomainEvents(), 1)

	tn.ClearDomainEvents()
	require.NoError(t, tn.ChangePlan(PlanPro, nil))
	assert.Empty(t, tn.GetDomainEvents(), "same plan emits nothing")

	err := tn.ChangePlan("platinum", nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestTenant_CheckStorage(t *testing.T) {
	tn := newTestTenant(t)
	tn.StorageQuotaBytes = 1000
	tn.StorageUsedBytes = 600

	require.NoError(t, tn.CheckStorage(400))

	err := tn.CheckStorage(401)
	assert.True(t, errors.Is(err, shared.ErrQuotaExceeded))
	assert.Equal(t, int64(600), tn.StorageUsedBytes, "checking never changes usage")

	assert.True(t, errors.Is(tn.CheckStorage(-1), shared.ErrInvalidInput))

	tn.StorageQuotaBytes = Unlimited
	assert.NoError(t, tn.CheckStorage(1<<40))
}

func TestTenant_Update(t *testing.T) {
	tn := newTestTenant(t)
	err := tn.Update("Acme SAC", "billing@acme.pe", "Acme S.A.C.", "20123456789", Settings{Currency: "pen", Timezone: "America/Lima"})
	require.NoError(t, err)
	assert.Equal(t, "PEN", tn.Settings.Currency)
	assert.Equal(t, "20123456789", tn.TaxID)
	assert.Equal(t, 2, tn.Version)

	err = tn.Update("Acme", "billing@acme.pe", "", "12AB", Settings{Currency: "PEN"})
	assert.Error(t, err)
}

func TestPlans(t *testing.T) {
	all := Plans()
	require.Len(t, all, 4)
	assert.Equal(t, PlanFree, all[0].Code)
	assert.Equal(t, PlanEnterprise, all[3].Code)

	pro, ok := LookupPlan("PRO")
	require.True(t, ok)
	price, ok := pro.PriceFor("pen")
	require.True(t, ok)
	assert.Equal(t, "299", price.String())

	_, ok = pro.PriceFor("EUR")
	assert.False(t, ok)

	assert.True(t, Allows(Unlimited, 1e9, 1))
	assert.True(t, Allows(10, 9, 1))
	assert.False(t, Allows(10, 10, 1))
}
