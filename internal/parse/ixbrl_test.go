package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIXBRL = `<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL">
<body>
<div style="display:none"><ix:header></ix:header></div>
<p>Dated <ix:nonNumeric name="oef:ProspectusDate" contextRef="c1">March 1, 2024</ix:nonNumeric></p>
<p><ix:nonNumeric name="dei:EntityRegistrantName" contextRef="c1"><span>Acme ETF</span> <b>Trust</b></ix:nonNumeric></p>
<p><ix:nonNumeric name="dei:DocumentType" contextRef="c1">485BPOS</ix:nonNumeric></p>
<p><ix:nonNumeric name="oef:ProspectusDate" contextRef="c2">April 9, 2024</ix:nonNumeric></p>
<table><tr>
<td><ix:nonFraction name="oef:ManagementFeesOverAssets" contextRef="c1" unitRef="pure">0.75</ix:nonFraction>%</td>
<td><ix:nonFraction name="oef:ExpensesOverAssets" contextRef="c1" unitRef="pure">0.95%</ix:nonFraction></td>
<td><ix:nonFraction name="oef:NetExpensesOverAssets" contextRef="c1">-</ix:nonFraction></td>
<td><ix:nonFraction name="oef:ExpensesOverAssets" contextRef="c2">1.25</ix:nonFraction></td>
<td><ix:nonFraction name="us-gaap:Unrelated" contextRef="c1">9</ix:nonFraction></td>
</tr></table>
</body></html>`

func TestParseInlineXBRL(t *testing.T) {
	facts := ParseInlineXBRL(sampleIXBRL)
	assert.False(t, facts.Empty())

	assert.Equal(t, "March 1, 2024", facts.ProspectusDate, "first occurrence kept")
	assert.Equal(t, "2024-03-01", facts.EffectiveDate().String())
	assert.Equal(t, "Acme ETF Trust", facts.RegistrantName)
	assert.Equal(t, "485BPOS", facts.DocumentType)

	require.NotNil(t, facts.ManagementFee)
	assert.InDelta(t, 0.75, *facts.ManagementFee, 1e-9)
	require.NotNil(t, facts.ExpenseRatio)
	assert.InDelta(t, 0.95, *facts.ExpenseRatio, 1e-9)
	assert.Nil(t, facts.NetExpenseRatio)
}

func TestParseInlineXBRL_NoTags(t *testing.T) {
	assert.True(t, ParseInlineXBRL("<html><body>plain</body></html>").Empty())
	assert.True(t, ParseInlineXBRL("").Empty())
	assert.Nil(t, ParseInlineXBRL("").EffectiveDate())
}

func TestParseInlineXBRL_Malformed(t *testing.T) {
	facts := ParseInlineXBRL(`<ix:nonNumeric name="dei:DocumentType">497K`)
	assert.True(t, facts.Empty(), "unterminated element yields nothing")

	facts = ParseInlineXBRL(`<ix:nonNumeric>x</ix:nonNumeric><ix:nonNumeric name="dei:DocumentType">497K</ix:nonNumeric>`)
	assert.Equal(t, "497K", facts.DocumentType)
}

func TestHasInlineXBRL(t *testing.T) {
	assert.True(t, HasInlineXBRL(`<ix:header>`))
	assert.False(t, HasInlineXBRL(`<html>`))
}
