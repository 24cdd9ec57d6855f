package rma

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermark/servicedesk-backend/pkg/enums"
)

func strPtr(value string) *string {
	return &value
}

func statusPtr(value enums.RmaCaseStatus) *enums.RmaCaseStatus {
	return &value
}

func TestDeriveInboundTrackingSetsReceivedAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	prior := Snapshot{Status: enums.RmaCaseStatusReceived}

	eff := Derive(prior, TrackingChange{
		InboundTrackingNumber: strPtr("ABC123"),
		InboundStatus:         strPtr("in transit"),
	}, now)

	require.NotNil(t, eff.ReceivedAt)
	assert.Equal(t, now, *eff.ReceivedAt)
	assert.Nil(t, eff.Status, "status stays put without a delivered signal")
	assert.Nil(t, eff.InspectedAt)
	assert.Equal(t, []string{"received_at"}, eff.AppliedFields())
	assert.Equal(t, "inbound", eff.Leg())
}

func TestDeriveInboundDeliveredAdvancesToTesting(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	arrived := now.Add(-24 * time.Hour)
	prior := Snapshot{
		Status:                enums.RmaCaseStatusReceived,
		InboundTrackingNumber: "ABC123",
		ReceivedAt:            &arrived,
	}

	eff := Derive(prior, TrackingChange{
		InboundStatus: strPtr("Delivered to front desk"),
	}, now)

	require.NotNil(t, eff.Status)
	assert.Equal(t, enums.RmaCaseStatusTesting, *eff.Status)
	require.NotNil(t, eff.InspectedAt)
	assert.Nil(t, eff.ReceivedAt, "received_at already set")
}

func TestDeriveInboundDeliveredIgnoredPastReceived(t *testing.T) {
	now := time.Now().UTC()
	prior := Snapshot{
		Status:                enums.RmaCaseStatusSentToManufacturer,
		InboundTrackingNumber: "ABC123",
	}

	eff := Derive(prior, TrackingChange{InboundStatus: strPtr("delivered")}, now)

	assert.Nil(t, eff.Status)
	assert.Nil(t, eff.InspectedAt)
}

func TestDeriveCallerProvidedReceivedAtWins(t *testing.T) {
	now := time.Now().UTC()
	manual := now.Add(-2 * time.Hour)
	prior := Snapshot{Status: enums.RmaCaseStatusReceived}

	eff := Derive(prior, TrackingChange{
		InboundTrackingNumber: strPtr("ABC123"),
		ReceivedAt:            &manual,
	}, now)

	assert.Nil(t, eff.ReceivedAt, "caller value wins over automation")
}

func TestDeriveOutboundTrackingClosesCase(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)
	prior := Snapshot{Status: enums.RmaCaseStatusRepairedReplaced}

	eff := Derive(prior, TrackingChange{
		OutboundTrackingNumber: strPtr("XYZ"),
	}, now)

	require.NotNil(t, eff.Status)
	assert.Equal(t, enums.RmaCaseStatusBackToCustomer, *eff.Status)
	require.NotNil(t, eff.ShippedBackAt)
	assert.Equal(t, now, *eff.ShippedBackAt)
	require.NotNil(t, eff.ClosedAt, "close is eager, not waiting for delivery")
	assert.Equal(t, now, *eff.ClosedAt)
	assert.Equal(t, "outbound", eff.Leg())
}

func TestDeriveOutboundCallerStatusSuppressesClose(t *testing.T) {
	now := time.Now().UTC()
	prior := Snapshot{Status: enums.RmaCaseStatusRepairedReplaced}

	eff := Derive(prior, TrackingChange{
		OutboundTrackingNumber: strPtr("XYZ"),
		Status:                 statusPtr(enums.RmaCaseStatusRepairedReplaced),
	}, now)

	assert.Nil(t, eff.Status, "caller set status explicitly")
	assert.Nil(t, eff.ClosedAt)
	require.NotNil(t, eff.ShippedBackAt, "shipped_back_at still fills in")
}

func TestDeriveOutboundDeliveredConfirmsAndCloses(t *testing.T) {
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	shipped := now.Add(-48 * time.Hour)
	prior := Snapshot{
		Status:                 enums.RmaCaseStatusRepairedReplaced,
		OutboundTrackingNumber: "XYZ",
		ShippedBackAt:          &shipped,
	}

	eff := Derive(prior, TrackingChange{
		OutboundStatus: strPtr("Delivered"),
	}, now)

	require.NotNil(t, eff.DeliveredBackAt)
	require.NotNil(t, eff.ClosedAt)
	require.NotNil(t, eff.Status)
	assert.Equal(t, enums.RmaCaseStatusBackToCustomer, *eff.Status)
}

func TestDeriveOutboundDeliveredAlreadyClosed(t *testing.T) {
	now := time.Now().UTC()
	closed := now.Add(-24 * time.Hour)
	prior := Snapshot{
		Status:                 enums.RmaCaseStatusBackToCustomer,
		OutboundTrackingNumber: "XYZ",
		ShippedBackAt:          &closed,
		ClosedAt:               &closed,
	}

	eff := Derive(prior, TrackingChange{OutboundStatus: strPtr("delivered")}, now)

	require.NotNil(t, eff.DeliveredBackAt)
	assert.Nil(t, eff.ClosedAt, "already closed")
	assert.Nil(t, eff.Status)
}

func TestDeriveBothLegsInOneUpdate(t *testing.T) {
	now := time.Now().UTC()
	prior := Snapshot{Status: enums.RmaCaseStatusReceived}

	eff := Derive(prior, TrackingChange{
		InboundTrackingNumber:  strPtr("IN1"),
		OutboundTrackingNumber: strPtr("OUT1"),
	}, now)

	require.NotNil(t, eff.ReceivedAt)
	require.NotNil(t, eff.ShippedBackAt)
	require.NotNil(t, eff.Status)
	assert.Equal(t, enums.RmaCaseStatusBackToCustomer, *eff.Status)
	assert.Equal(t, "inbound+outbound", eff.Leg())
}

func TestDeriveNoChangeNoEffect(t *testing.T) {
	now := time.Now().UTC()
	prior := Snapshot{
		Status:                enums.RmaCaseStatusTesting,
		InboundTrackingNumber: "ABC123",
	}

	eff := Derive(prior, TrackingChange{}, now)

	assert.False(t, eff.Fired())
	assert.Empty(t, eff.AppliedFields())
}

func TestDeriveTrackingNumberOverwriteDoesNotRefire(t *testing.T) {
	now := time.Now().UTC()
	arrived := now.Add(-time.Hour)
	prior := Snapshot{
		Status:                enums.RmaCaseStatusTesting,
		InboundTrackingNumber: "OLD",
		ReceivedAt:            &arrived,
	}

	eff := Derive(prior, TrackingChange{InboundTrackingNumber: strPtr("NEW")}, now)

	assert.False(t, eff.Fired(), "only empty-to-non-empty transitions fire")
}
