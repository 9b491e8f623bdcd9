package validate

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/cache"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/index"
)

// Report statuses and scopes
const (
	StatusOK    = "ok"
	StatusError = "error"

	ScopeAll     = "all"
	ScopeLibrary = "library"
)

// ReportFile is the file name of the cached last-run report.
const ReportFile = "validation_report.json"

// mpnKeys are probed in order for a manufacturer part number.
var mpnKeys = []string{"MPN", "MFR_PART", "MANUFACTURER_PART_NUMBER", "Part Number"}

// Stats summarizes a run.
type Stats struct {
	TotalChecked int            `json:"total_checked"`
	TotalFails   int            `json:"total_fails"`
	FailsByLib   map[string]int `json:"fails_by_lib"`
}

// Duplicate is a manufacturer part number shared by several symbols.
type Duplicate struct {
	MPN   string   `json:"mpn"`
	Parts []string `json:"parts"`
}

// Report is the summary of one validation run.
type Report struct {
	RunID      string      `json:"run_id"`
	Timestamp  string      `json:"timestamp"`
	Scope      string      `json:"scope"`
	TargetLib  string      `json:"target_lib,omitempty"`
	Status     string      `json:"status"`
	Stats      Stats       `json:"stats"`
	Failures   []Failure   `json:"failures"`
	Exempted   []Failure   `json:"exempted,omitempty"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
	Affected   []string    `json:"affected"`
}

// Options selects the checks of a Run. Property rules always run.
type Options struct {
	Libraries  []string
	Structural bool
	Footprints *index.Libraries
	PinPads    bool
	Duplicates bool
}

// FullOptions enables every check.
func FullOptions(fps *index.Libraries, libraries ...string) Options {
	return Options{Libraries: libraries, Structural: true, Footprints: fps, PinPads: true, Duplicates: true}
}

// Run executes the selected checks and builds the report.
func (v *Validator) Run(store *index.Store, opts Options) *Report {
	res := v.CheckRules(store, opts.Libraries...)
	if opts.Structural {
		structural := v.CheckSymbols(store, opts.Libraries...)
		structural.Checked = 0
		res.Merge(structural)
	}
	if opts.PinPads {
		pp := v.CheckPinPads(store, opts.Libraries...)
		pp.Checked = 0
		res.Merge(pp)
	}
	if opts.Footprints != nil {
		res.Merge(v.CheckFootprints(opts.Footprints))
	}

	r := NewReport(res, opts.Libraries, v.now())
	if opts.Duplicates {
		r.Duplicates = FindDuplicates(store)
	}
	return r
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// NewReport summarizes res. libraries is the scope; empty means all.
func NewReport(res *Result, libraries []string, now time.Time) *Report {
	r := &Report{
		RunID:     uuid.NewString(),
		Timestamp: cache.Timestamp(now),
		Scope:     ScopeAll,
		Status:    StatusOK,
		Failures:  append([]Failure{}, res.Active...),
		Exempted:  res.Exempted,
		Affected:  []string{},
		Stats: Stats{
			TotalChecked: res.Checked,
			TotalFails:   len(res.Active),
			FailsByLib:   make(map[string]int),
		},
	}
	if len(libraries) > 0 {
		r.Scope = ScopeLibrary
		r.TargetLib = strings.Join(libraries, ";")
	}

	if len(res.Active) > 0 {
		r.Status = StatusError
	}
	affected := make(map[string]bool)
	for _, f := range res.Active {
		r.Stats.FailsByLib[f.Lib]++
		if f.Name != "" {
			affected[f.Lib+":"+f.Name] = true
		}
	}
	for id := range affected {
		r.Affected = append(r.Affected, id)
	}
	sort.Strings(r.Affected)
	return r
}

// SaveReport writes r to path, replacing the previous report.
func SaveReport(path string, r *Report) error {
	return cache.Save(path, r)
}

// LoadReport reads the last saved report.
func LoadReport(path string) (*Report, error) {
	var r Report
	if err := cache.Load(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// PartNumber returns the first usable manufacturer part number of props.
func PartNumber(props map[string]string) string {
	for _, k := range mpnKeys {
		v := strings.TrimSpace(props[k])
		if v == "" || v == "~" || strings.EqualFold(v, "n/a") {
			continue
		}
		return v
	}
	return ""
}

// FindDuplicates returns the part numbers carried by more than one symbol,
// sorted by part number. Parts keep store order.
func FindDuplicates(store *index.Store) []Duplicate {
	byMPN := make(map[string][]string)
	for _, libName := range store.Libraries() {
		lib, _ := store.Library(libName)
		for _, sym := range lib.Symbols() {
			if mpn := PartNumber(sym.Properties); mpn != "" {
				byMPN[mpn] = append(byMPN[mpn], sym.ID())
			}
		}
	}
	var out []Duplicate
	for mpn, parts := range byMPN {
		if len(parts) > 1 {
			out = append(out, Duplicate{MPN: mpn, Parts: parts})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MPN < out[j].MPN })
	return out
}
