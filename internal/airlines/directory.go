package airlines

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultLogoURLTemplate renders a logo from an airline web domain
const DefaultLogoURLTemplate = "https://logo.clearbit.com/%s"

// Airline is one directory entry keyed by its three-letter ICAO code
type Airline struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

// Directory maps callsign prefixes to airlines. It is read-only after construction.
type Directory struct {
	byCode       map[string]Airline
	logoTemplate string
}

// NewDirectory builds a directory. Later entries replace earlier ones with the same code.
func NewDirectory(entries []Airline, logoTemplate string) *Directory {
	if logoTemplate == "" {
		logoTemplate = DefaultLogoURLTemplate
	}
	d := &Directory{
		byCode:       make(map[string]Airline, len(entries)),
		logoTemplate: logoTemplate,
	}
	for _, a := range entries {
		a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
		if a.Code == "" {
			continue
		}
		d.byCode[a.Code] = a
	}
	return d
}

// prefix returns the upper-cased first three characters of a callsign
func prefix(callsign string) string {
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	if len(cs) < 3 {
		return ""
	}
	return cs[:3]
}

// Lookup finds the airline operating a callsign
func (d *Directory) Lookup(callsign string) (Airline, bool) {
	code := prefix(callsign)
	if code == "" {
		return Airline{}, false
	}
	a, ok := d.byCode[code]
	return a, ok
}

// Name returns the airline name, or "" when unknown
func (d *Directory) Name(callsign string) string {
	a, ok := d.Lookup(callsign)
	if !ok {
		return ""
	}
	return a.Name
}

// LogoURL returns the logo URL, or "" when the airline or its domain is unknown
func (d *Directory) LogoURL(callsign string) string {
	a, ok := d.Lookup(callsign)
	if !ok || a.Domain == "" {
		return ""
	}
	return fmt.Sprintf(d.logoTemplate, a.Domain)
}

// All returns every entry sorted by code
func (d *Directory) All() []Airline {
	out := make([]Airline, 0, len(d.byCode))
	for _, a := range d.byCode {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
