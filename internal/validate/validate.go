// Package validate runs property rules and structural checks over the
// indexed libraries and summarizes the outcome in a report.
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/index"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/logging"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/metrics"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/resolve"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/footprint"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/symbol"
)

// Severities
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Check names used for exemptions of the non-rule checks.
const (
	CheckPins          = "pins"
	CheckPinNumbers    = "pin_numbers"
	CheckDuplicatePins = "duplicate_pins"
	CheckPinPad        = "pin_pad"

	CheckLibraryPath = "library_path"
	CheckParse       = "parse"
	CheckPads        = "pads"
	CheckPadNumbers  = "pad_numbers"
	CheckPadSize     = "pad_size"
	CheckDrill       = "drill"
)

var errorKeywords = []string{"missing", "failed", "invalid", "duplicate", "error"}

// Failure is one validation finding.
type Failure struct {
	Lib      string `json:"lib"`
	Name     string `json:"name"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Severity infers the severity of a message from its wording.
func Severity(message string) string {
	lower := strings.ToLower(message)
	for _, k := range errorKeywords {
		if strings.Contains(lower, k) {
			return SeverityError
		}
	}
	return SeverityWarning
}

// ExemptMessage is the message recorded for a failure waived by an
// exemption.
func ExemptMessage(check, message string) string {
	return fmt.Sprintf("[Exempt] '%s' %s", check, message)
}

// Result holds the active and the exempted failures of a run. The two lists
// never share an entry.
type Result struct {
	Active   []Failure
	Exempted []Failure
	// Checked counts the entities examined.
	Checked int
}

// Merge appends other to r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Active = append(r.Active, other.Active...)
	r.Exempted = append(r.Exempted, other.Exempted...)
	r.Checked += other.Checked
}

// FootprintSource loads a footprint by "LIB:NAME" reference.
// *resolve.Resolver satisfies it.
type FootprintSource interface {
	Footprint(ref string) (*footprint.Module, error)
}

// Validator checks indexed symbols and footprints.
type Validator struct {
	Rules *RuleSet
	// Footprints serves the pin/pad check. Nil skips it.
	Footprints FootprintSource
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

func (v *Validator) rules() *RuleSet {
	if v.Rules == nil {
		v.Rules = &RuleSet{}
	}
	return v.Rules
}

// emit files a symbol-side failure under check. severity may be empty to
// infer it from the message.
func (v *Validator) emit(res *Result, exempt bool, lib, name, check, message, severity string) {
	if severity == "" {
		severity = Severity(message)
	}
	if exempt {
		res.Exempted = append(res.Exempted, Failure{Lib: lib, Name: name, Message: ExemptMessage(check, message), Severity: severity})
	} else {
		res.Active = append(res.Active, Failure{Lib: lib, Name: name, Message: message, Severity: severity})
	}
	v.Metrics.RecordValidation(severity, exempt)
}

func (v *Validator) emitSymbol(res *Result, sym *symbol.Symbol, check, message, severity string) {
	exempt := v.rules().PartExempt(sym.Library, sym.Name, check)
	v.emit(res, exempt, sym.Library, sym.Name, check, message, severity)
}

func (v *Validator) emitFootprint(res *Result, lib, name, check, message, severity string) {
	exempt := v.rules().FootprintExempt(lib, name, check)
	v.emit(res, exempt, lib, name, check, message, severity)
}

// inScope returns the libraries of store named by libraries, or all of them
// when libraries is empty.
func inScope(store *index.Store, libraries []string) []*index.Library {
	names := libraries
	if len(names) == 0 {
		names = store.Libraries()
	}
	var out []*index.Library
	for _, n := range names {
		if lib, ok := store.Library(n); ok {
			out = append(out, lib)
		}
	}
	return out
}

// CheckRules evaluates the global and library rules for every symbol in
// scope.
func (v *Validator) CheckRules(store *index.Store, libraries ...string) *Result {
	rs := v.rules()
	res := &Result{}
	for _, lib := range inScope(store, libraries) {
		for _, sym := range lib.Symbols() {
			res.Checked++
			for _, rule := range rs.GlobalRules {
				exempt := rs.PartExempt(lib.Name, sym.Name, rule.Name)
				value, ok := sym.Property(rule.Name)
				if !ok {
					v.emit(res, exempt, lib.Name, sym.Name, rule.Name,
						fmt.Sprintf("Missing Global Property: '%s'", rule.Name), "")
					continue
				}
				if rule.Pattern == "" {
					continue
				}
				re, err := rs.pattern(rule)
				if err != nil {
					v.emit(res, exempt, lib.Name, sym.Name, rule.Name,
						fmt.Sprintf("Invalid rule pattern for '%s': %v", rule.Name, err), "")
					continue
				}
				if !re.MatchString(value) {
					v.emit(res, exempt, lib.Name, sym.Name, rule.Name,
						fmt.Sprintf("Invalid Value for '%s': '%s' does not match '%s'", rule.Name, value, rule.Pattern), "")
				}
			}
			for _, name := range rs.LibraryRules[lib.Name] {
				exempt := rs.PartExempt(lib.Name, sym.Name, name)
				if _, ok := sym.Property(name); !ok {
					v.emit(res, exempt, lib.Name, sym.Name, name,
						fmt.Sprintf("Missing Library Rule Property: '%s'", name), "")
				}
			}
		}
	}
	return res
}

// CheckSymbols runs the structural symbol checks.
func (v *Validator) CheckSymbols(store *index.Store, libraries ...string) *Result {
	res := &Result{}
	for _, lib := range inScope(store, libraries) {
		for _, sym := range lib.Symbols() {
			res.Checked++
			for _, key := range []string{symbol.PropReference, symbol.PropValue} {
				if _, ok := sym.Property(key); !ok {
					v.emitSymbol(res, sym, key, fmt.Sprintf("Missing %s property", key), "")
				}
			}

			pins := effectivePins(store, sym)
			if len(pins) == 0 {
				v.emitSymbol(res, sym, CheckPins, "Symbol has no pins", SeverityWarning)
				continue
			}

			seen := make(map[string]bool, len(pins))
			reported := make(map[string]bool)
			for _, p := range pins {
				num := strings.TrimSpace(p.Number)
				if num == "" || num == "~" {
					v.emitSymbol(res, sym, CheckPinNumbers, fmt.Sprintf("Invalid pin number '%s' on pin '%s'", p.Number, p.Name), "")
					continue
				}
				if seen[num] && !reported[num] {
					reported[num] = true
					v.emitSymbol(res, sym, CheckDuplicatePins, fmt.Sprintf("Duplicate pin number '%s'", num), SeverityWarning)
				}
				seen[num] = true
			}

			if fp, _ := sym.Property(symbol.PropFootprint); strings.TrimSpace(fp) == "" {
				v.emitSymbol(res, sym, symbol.PropFootprint, "Missing Footprint property", "")
			}
		}
	}
	return res
}

// effectivePins returns the pins of sym, or those of the symbol it extends
// within the same library when it declares none.
func effectivePins(store *index.Store, sym *symbol.Symbol) []symbol.Pin {
	seen := map[string]bool{}
	for cur := sym; cur != nil && !seen[cur.Name]; {
		seen[cur.Name] = true
		if len(cur.Pins) > 0 || cur.Extends == "" {
			return cur.Pins
		}
		parent, ok := store.Symbol(cur.Library, cur.Extends)
		if !ok {
			return nil
		}
		cur = parent
	}
	return nil
}

// CheckFootprints runs the structural checks over every footprint of the
// indexed libraries in scope.
func (v *Validator) CheckFootprints(libs *index.Libraries, libraries ...string) *Result {
	res := &Result{}
	names := libraries
	if len(names) == 0 {
		names = libs.Names()
	}
	log := logging.OrNop(v.Logger)

	for _, lib := range names {
		dir, ok := libs.Path(lib)
		if !ok {
			continue
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			v.emitFootprint(res, lib, "", CheckLibraryPath, fmt.Sprintf("Missing library path: %s", dir), "")
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			v.emitFootprint(res, lib, "", CheckLibraryPath, fmt.Sprintf("Failed to read library: %v", err), "")
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), footprint.Extension) {
				continue
			}
			name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			res.Checked++
			mod, err := footprint.ParseFile(filepath.Join(dir, e.Name()))
			if err != nil {
				log.Debug("footprint parse failed", zap.String("library", lib), zap.String("footprint", name), zap.Error(err))
				v.emitFootprint(res, lib, name, CheckParse, fmt.Sprintf("Failed to parse footprint: %v", err), "")
				continue
			}
			if mod.StrayParens > 0 {
				log.Warn("stray ')' ignored",
					zap.String("library", lib), zap.String("footprint", name), zap.Int("count", mod.StrayParens))
			}
			v.checkModule(res, lib, name, mod)
		}
	}
	return res
}

func (v *Validator) checkModule(res *Result, lib, name string, mod *footprint.Module) {
	if len(mod.Pads) == 0 {
		v.emitFootprint(res, lib, name, CheckPads, "Footprint has no pads", SeverityWarning)
		return
	}

	numbered, unnumbered := 0, 0
	for _, p := range mod.Pads {
		if strings.TrimSpace(p.Number) == "" {
			unnumbered++
		} else {
			numbered++
		}
	}
	if numbered > 0 && unnumbered > 0 {
		v.emitFootprint(res, lib, name, CheckPadNumbers,
			fmt.Sprintf("%d unnumbered pads among %d numbered pads", unnumbered, numbered), SeverityWarning)
	}

	for _, p := range mod.Pads {
		if p.Size.Width <= 0 || p.Size.Height <= 0 {
			v.emitFootprint(res, lib, name, CheckPadSize,
				fmt.Sprintf("Invalid pad size for pad '%s': %gx%g", p.Number, p.Size.Width, p.Size.Height), "")
			continue
		}
		if p.Drill != nil && p.Drill.Size.Max() > p.Size.Min() {
			v.emitFootprint(res, lib, name, CheckDrill,
				fmt.Sprintf("Invalid drill for pad '%s': %g exceeds pad size %g", p.Number, p.Drill.Size.Max(), p.Size.Min()), "")
		}
	}
}

type footprintResult struct {
	mod *footprint.Module
	err error
}

// CheckPinPads compares every symbol's pin numbers against the pads of its
// footprint. Footprints are loaded once per reference within one call.
func (v *Validator) CheckPinPads(store *index.Store, libraries ...string) *Result {
	res := &Result{}
	if v.Footprints == nil {
		return res
	}
	memo := make(map[string]footprintResult)

	for _, lib := range inScope(store, libraries) {
		for _, sym := range lib.Symbols() {
			ref, _ := sym.Property(symbol.PropFootprint)
			ref = strings.TrimSpace(ref)
			if ref == "" || ref == "~" {
				continue
			}
			res.Checked++

			fr, ok := memo[ref]
			if !ok {
				fr.mod, fr.err = v.Footprints.Footprint(ref)
				memo[ref] = fr
			}
			if fr.err != nil {
				msg := fmt.Sprintf("Failed to load footprint: '%s' (%v)", ref, fr.err)
				if errors.Is(fr.err, resolve.ErrNotFound) {
					msg = fmt.Sprintf("Footprint file not found: '%s' (%v)", ref, fr.err)
				}
				v.emitSymbol(res, sym, CheckPinPad, msg, "")
				continue
			}

			pads := make(map[string]bool)
			for _, n := range fr.mod.PadNumbers() {
				pads[n] = true
			}
			done := make(map[string]bool)
			for _, p := range effectivePins(store, sym) {
				if pads[p.Number] || done[p.Number] {
					continue
				}
				done[p.Number] = true
				v.emitSymbol(res, sym, CheckPinPad,
					fmt.Sprintf("Pin '%s' missing from footprint '%s'", p.Number, ref), "")
			}
		}
	}
	return res
}
