package revenue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

func TestBusinessModel_UnmarshalJSON(t *testing.T) {
	t.Run("decodes every field", func(t *testing.T) {
		var m BusinessModel
		err := json.Unmarshal([]byte(`{
			"listing_id": "listing-1",
			"pmc_share": "0.8",
			"deductions": {"municipal_taxes": true},
			"tax_rates": {"municipal": "0.08"},
			"credit_card_fee_rate": "0.03"
		}`), &m)
		require.NoError(t, err)
		assert.Equal(t, "listing-1", m.ListingID)
		assert.True(t, m.PMCShare.Equal(valueobject.MustRatio("0.8")))
		assert.True(t, m.Deductions.MunicipalTaxes)
		assert.True(t, m.TaxRates.Municipal.Equal(valueobject.MustRatio("0.08")))
		assert.True(t, m.CreditCardFeeRate.Equal(valueobject.MustRatio("0.03")))
	})

	t.Run("explicit zero share is kept", func(t *testing.T) {
		var m BusinessModel
		require.NoError(t, json.Unmarshal([]byte(`{"listing_id":"listing-1","pmc_share":"0"}`), &m))
		assert.True(t, m.PMCShare.IsZero())
	})

	for _, payload := range []string{
		`{"listing_id":"listing-1","tax_rates":{"municipal":"0.08"}}`,
		`{"listing_id":"listing-1","pmc_share":null}`,
	} {
		t.Run("missing share is rejected "+payload, func(t *testing.T) {
			var m BusinessModel
			err := json.Unmarshal([]byte(payload), &m)
			require.Error(t, err)
			assert.True(t, shared.IsCode(err, shared.CodeInvalidBusinessModel), "got %v", err)
		})
	}

	t.Run("round trips", func(t *testing.T) {
		model := municipalOnly("0.08")
		data, err := json.Marshal(model)
		require.NoError(t, err)
		var back BusinessModel
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, back.PMCShare.Equal(model.PMCShare))
		assert.NoError(t, back.Validate())
	})
}

func TestBusinessModel_ValidateRateMessage(t *testing.T) {
	model := municipalOnly("0.08")
	model.CreditCardFeeRate = valueobject.RatioOf(d("2"))

	err := model.Validate()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeInvalidBusinessModel, de.Code)
	assert.Equal(t, "credit card fee rate 2 is outside [0,1]", de.Message)
	assert.NotContains(t, de.Message, shared.CodeInvalidRevenueInput)
}
