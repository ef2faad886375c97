package airlines

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDirectory() *Directory {
	return NewDirectory([]Airline{
		{Code: "IGO", Name: "IndiGo", Domain: "goindigo.in"},
		{Code: "aic", Name: "Air India", Domain: "airindia.in"},
		{Code: "XYZ", Name: "No Domain"},
	}, "")
}

func TestLookupByPrefix(t *testing.T) {
	d := testDirectory()

	a, ok := d.Lookup("IGO123")
	assert.True(t, ok)
	assert.Equal(t, "IndiGo", a.Name)

	a, ok = d.Lookup(" aic456 ")
	assert.True(t, ok)
	assert.Equal(t, "AIC", a.Code)

	_, ok = d.Lookup("N/A")
	assert.False(t, ok)
	_, ok = d.Lookup("IG")
	assert.False(t, ok)
}

func TestLogoURL(t *testing.T) {
	d := testDirectory()

	assert.Equal(t, "https://logo.clearbit.com/goindigo.in", d.LogoURL("IGO123"))
	assert.Equal(t, "", d.LogoURL("XYZ100"))
	assert.Equal(t, "", d.LogoURL("QQQ999"))

	custom := NewDirectory([]Airline{{Code: "BAW", Domain: "britishairways.com"}}, "https://img.example/%s.png")
	assert.Equal(t, "https://img.example/britishairways.com.png", custom.LogoURL("BAW22"))
}

func TestName(t *testing.T) {
	d := testDirectory()
	assert.Equal(t, "Air India", d.Name("AIC101"))
	assert.Equal(t, "", d.Name("ZZZ101"))
}

func TestAllSorted(t *testing.T) {
	codes := []string{}
	for _, a := range testDirectory().All() {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"AIC", "IGO", "XYZ"}, codes)
}
