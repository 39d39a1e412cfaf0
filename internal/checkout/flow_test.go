package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/boutique/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadForm_AppliesPreferenceDefaults(t *testing.T) {
	tf := setupFlow(t)
	tf.api.Prefs = &domain.Preferences{
		DefaultShippingMethod: ptr(3),
		DefaultPaymentMethod:  ptr(2),
		DefaultAddress:        ptr(7),
	}

	st, err := tf.flow.LoadForm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StepForm, st.Step)
	assert.Equal(t, selection(3, 7, 2), st.Selection)
	assert.Len(t, st.Form.ShippingMethods, 3, "inactive methods are not offered")
	assert.Len(t, st.Form.PaymentMethods, 3)
	assert.Len(t, st.Form.Addresses, 2)
}

func TestLoadForm_UnknownDefaultStaysUnselected(t *testing.T) {
	tf := setupFlow(t)
	tf.api.Prefs = &domain.Preferences{DefaultShippingMethod: ptr(6), DefaultAddress: ptr(99)}

	st, err := tf.flow.LoadForm(context.Background())
	require.NoError(t, err)

	assert.Nil(t, st.Selection.ShippingMethodID)
	assert.Nil(t, st.Selection.AddressID)
}

func TestLoadForm_KeepsExistingSelection(t *testing.T) {
	tf := setupFlow(t)
	tf.api.Prefs = &domain.Preferences{DefaultShippingMethod: ptr(3)}
	tf.flow.Select(Selection{ShippingMethodID: ptr(5)})

	st, err := tf.flow.LoadForm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), *st.Selection.ShippingMethodID)
}

func TestLoadForm_PartialFailureKeepsWhatLoaded(t *testing.T) {
	tf := setupFlow(t)
	tf.api.Prefs = &domain.Preferences{DefaultShippingMethod: ptr(3)}
	tf.api.Fail["list_addresses"] = errors.New("timeout")

	st, err := tf.flow.LoadForm(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load addresses")
	assert.Len(t, st.Form.ShippingMethods, 3)
	assert.Empty(t, st.Form.Addresses)
	assert.Equal(t, int64(3), *st.Selection.ShippingMethodID)
	assert.ElementsMatch(t,
		[]string{"list_shipping_methods", "list_payment_methods", "list_addresses", "get_preferences"},
		tf.api.calls())
}

func TestValidate_PickupDropsAddressRequirement(t *testing.T) {
	tf := setupFlow(t)
	_, err := tf.flow.LoadForm(context.Background())
	require.NoError(t, err)

	tf.flow.Select(selection(4, 0, 2))
	assert.True(t, tf.flow.RequiresPickup())
	assert.NoError(t, tf.flow.Validate())

	tf.flow.Select(selection(3, 0, 2))
	assert.False(t, tf.flow.RequiresPickup())
	var verr *ValidationError
	require.ErrorAs(t, tf.flow.Validate(), &verr)
	assert.Equal(t, []string{"address"}, verr.Missing)
}

func TestValidate_ReportsEverythingMissing(t *testing.T) {
	tf := setupFlow(t)

	var verr *ValidationError
	require.ErrorAs(t, tf.flow.Validate(), &verr)
	assert.Equal(t, []string{"shipping_method", "address", "payment_method"}, verr.Missing)
}

func TestSelect_ReturnsReviewToForm(t *testing.T) {
	tf := setupFlow(t)
	_, err := tf.flow.LoadForm(context.Background())
	require.NoError(t, err)
	tf.flow.Select(selection(3, 7, 2))
	st, err := tf.flow.Submit(context.Background(), cartLines())
	require.NoError(t, err)
	require.Equal(t, StepReview, st.Step)

	st = tf.flow.Select(selection(5, 7, 2))
	assert.Equal(t, StepForm, st.Step)
	assert.NotNil(t, st.Order, "the draft is kept for the next submit")
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "form", StepForm.String())
	assert.Equal(t, "review", StepReview.String())
	assert.Equal(t, "unknown", Step(0).String())
}
