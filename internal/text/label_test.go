package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "Kreditrechner", Encode("Kreditrechner"))
	// ü and € exist in Windows-1252
	assert.Equal(t, "Zinsen f\xfcr 2 \x80", Encode("Zinsen für 2 €"))
	assert.Equal(t, "a b", Encode("  a \n\t b "))
	assert.Equal(t, "rate ?", Encode("rate ☃"))
}

func TestFit(t *testing.T) {
	measure := func(s string) float64 { return float64(len(s)) }

	assert.Equal(t, "Monthly budget", Fit("Monthly budget", 20, measure))
	assert.Equal(t, "Monthly...", Fit("Monthly budget", 10, measure))
	assert.Equal(t, "", Fit("Monthly budget", 2, measure))
	assert.Equal(t, "anything", Fit("anything", 0, measure))
}

func TestFitKeepsEncodedAccents(t *testing.T) {
	measure := func(s string) float64 { return float64(len(s)) }

	label := Encode("Crédit immobilier comparé sur vingt ans")
	fitted := Fit(label, 20, measure)

	assert.Equal(t, "Cr\xe9dit immobilier...", fitted)
	assert.NotContains(t, fitted, "\xef\xbf\xbd")
	assert.Equal(t, "Zinsen f\xfcr...", Fit(Encode("Zinsen für 2 €"), 13, measure))
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, LeftToRight, DirectionOf("Mortgage"))
	assert.Equal(t, RightToLeft, DirectionOf("משכנתא"))
	assert.Equal(t, RightToLeft, DirectionOf("123 قرض"))
	assert.Equal(t, LeftToRight, DirectionOf("2024 - 12"))
	assert.True(t, IsRTL("حاسبة"))
	assert.False(t, IsRTL(""))
}
