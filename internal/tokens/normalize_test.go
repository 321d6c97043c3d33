package tokens

import (
	"strings"
	"testing"

	"ocpi/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShortIsIdentity(t *testing.T) {
	for _, uid := range []string{"", "A", "04A2B3C4D5E6F7", strings.Repeat("x", MaxIDTokenLength)} {
		assert.Equal(t, uid, Normalize(uid))
		assert.False(t, NeedsExternalCopy(uid))
	}
}

func TestNormalizeLongIsBoundedAndStable(t *testing.T) {
	f := gofakeit.New(7)
	for i := 0; i < 200; i++ {
		uid := f.LetterN(uint(MaxIDTokenLength + 1 + f.IntRange(0, 200)))
		got := Normalize(uid)
		require.Len(t, got, MaxIDTokenLength)
		assert.Equal(t, got, Normalize(uid))
		assert.True(t, NeedsExternalCopy(uid))
	}
}

func TestNormalizeKnownValue(t *testing.T) {
	uid := "NL-TNM-C00122045-K-1234567890"
	got := Normalize(uid)
	assert.Len(t, got, 20)
	assert.Regexp(t, "^[0-9a-f]{20}$", got)
}

func TestMergeAdditionalInfo(t *testing.T) {
	old := []models.AdditionalInfo{
		{AdditionalIDToken: "NL-TNM-1", Type: InfoEMAID},
		{AdditionalIDToken: "V-1", Type: InfoVisualNumber},
		{AdditionalIDToken: "keep", Type: "Custom"},
	}
	partial := []models.AdditionalInfo{
		{AdditionalIDToken: "NL-TNM-2", Type: InfoEMAID},
		{AdditionalIDToken: "ignored", Type: "Brand"},
	}

	merged := MergeAdditionalInfo(partial, old)

	assert.Equal(t, []models.AdditionalInfo{
		{AdditionalIDToken: "NL-TNM-2", Type: InfoEMAID},
		{AdditionalIDToken: "V-1", Type: InfoVisualNumber},
		{AdditionalIDToken: "keep", Type: "Custom"},
	}, merged)
	assert.Equal(t, "NL-TNM-1", old[0].AdditionalIDToken, "input must not be mutated")
}

func TestMergeAdditionalInfoNeverAddsTypes(t *testing.T) {
	f := gofakeit.New(11)
	types := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 100; i++ {
		var old, partial []models.AdditionalInfo
		for _, ty := range types {
			if f.Bool() {
				old = append(old, models.AdditionalInfo{AdditionalIDToken: f.Word(), Type: ty})
			}
			if f.Bool() {
				partial = append(partial, models.AdditionalInfo{AdditionalIDToken: f.Word(), Type: ty})
			}
		}
		merged := MergeAdditionalInfo(partial, old)
		require.Len(t, merged, len(old))
		for j, m := range merged {
			assert.Equal(t, old[j].Type, m.Type)
			for _, p := range partial {
				if p.Type == m.Type {
					assert.Equal(t, p.AdditionalIDToken, m.AdditionalIDToken)
				}
			}
		}
	}
}

func TestTypeMapping(t *testing.T) {
	for ext, internal := range toIDTokenType {
		got, err := ToIDTokenType(ext)
		require.NoError(t, err)
		assert.Equal(t, internal, got)
		assert.Equal(t, ext, ToTokenType(got))
	}

	_, err := ToIDTokenType("PLATE")
	assert.ErrorIs(t, err, ErrUnknownTokenType)

	assert.Equal(t, models.TokenOther, ToTokenType(""))
	assert.Equal(t, models.TokenOther, ToTokenType(models.IDTokenEMAID))
}
