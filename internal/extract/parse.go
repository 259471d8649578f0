package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"rapport/internal/core"
	"rapport/internal/report"
)

// Accepted keys per field, German first.
var (
	customerKeys    = []string{"kunde_name", "kunde", "customer_name", "customer"}
	addressKeys     = []string{"adresse", "address"}
	descriptionKeys = []string{"problem_detail", "beschreibung", "description"}
	urgencyKeys     = []string{"dringlichkeit", "urgency"}
	netKeys         = []string{"netto", "betrag_netto", "net", "net_amount"}
	dateKeys        = []string{"datum", "date"}
)

var (
	fenceRe         = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// RepairJSON cleans typical model output before it is decoded: code fences,
// prose around the object and trailing commas.
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	s = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`).Replace(s)
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// DecodeDraft reads the fields of a report draft from model output.
func DecodeDraft(raw string) (report.Draft, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(RepairJSON(raw))))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return report.Draft{}, fmt.Errorf("decode model output: %w", err)
	}
	if len(m) == 0 {
		return report.Draft{}, ErrNoFields
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[strings.ToLower(strings.TrimSpace(k))] = v
	}

	d := report.Draft{
		CustomerName: pick(fields, customerKeys),
		Address:      pick(fields, addressKeys),
		Description:  pick(fields, descriptionKeys),
		Urgency:      pick(fields, urgencyKeys),
	}
	if d.CustomerName == "" && d.Description == "" {
		return report.Draft{}, ErrNoFields
	}

	net, err := amount(fields, netKeys)
	if err != nil {
		return report.Draft{}, err
	}
	d.Net = net

	if s := pick(fields, dateKeys); s != "" {
		// An unreadable date falls back to the booking day.
		if t, err := core.ParseLedgerDate(s, nil); err == nil {
			d.Date = t
		}
	}
	return d, nil
}

func pick(fields map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return ""
}

// amount reads a money field. JSON numbers use a decimal point; strings
// are parsed like ledger cells. A missing field is zero.
func amount(fields map[string]any, keys []string) (decimal.Decimal, error) {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case json.Number:
			d, err := decimal.NewFromString(v.String())
			if err != nil {
				return decimal.Zero, fmt.Errorf("%s: %w", k, core.ErrInvalidAmount)
			}
			return d, nil
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			d, err := core.ParseAmount(v)
			if err != nil {
				return decimal.Zero, fmt.Errorf("%s: %w", k, err)
			}
			return d, nil
		}
	}
	return decimal.Zero, nil
}
