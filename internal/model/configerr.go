package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	cue "cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail is one configuration problem located in the source file.
type CueErrorDetail struct {
	Path    string // e.g. service.repository.auth.token
	Code    string // unknown_field, missing_required, conflicting_values, invalid_enum, type_mismatch, validation_error
	Message string
	Pos     CueErrorPosition
}

// Attr renders the detail as a slog group.
func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
		slog.Int("column", c.Pos.Column),
	)
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

// enumPaths are the fields whose message lists the allowed values.
var enumPaths = []string{
	"service.mode",
	"engine.input",
	"engine.format",
	"service.repository.auth.type",
}

// rules are tried in order against the raw CUE message; format gets the
// field name.
var rules = []struct {
	re     *regexp.Regexp
	code   string
	format string
}{
	{regexp.MustCompile(`(?i)not allowed|unknown field`), "unknown_field", "Field %s is not allowed"},
	{regexp.MustCompile(`(?i)incomplete value`), "missing_required", "Field %s is required"},
	{regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`), "conflicting_values", "Conflicting values for %s"},
	{regexp.MustCompile(`(?i)must be one of|expected one of`), "invalid_enum", "Field %s has invalid value"},
	{regexp.MustCompile(`(?i)expected .* got .*`), "type_mismatch", "Field %s has wrong type/value"},
}

// CueErrDetails turns a LoadConfig error into one detail per offending
// position in the configuration file. Errors without a file position are
// dropped.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}

	seen := make(map[CueErrorPosition]struct{})
	var out []CueErrorDetail
	for _, e := range cueerrors.Errors(err) {
		pos, ok := filePosition(e)
		if !ok {
			continue
		}
		if _, dup := seen[pos]; dup {
			continue
		}
		seen[pos] = struct{}{}

		path := fieldPath(e.Path())
		raw, _ := e.Msg()
		d := CueErrorDetail{Path: path, Code: "validation_error", Message: raw, Pos: pos}
		name := path[strings.LastIndexByte(path, '.')+1:]
		for _, r := range rules {
			if r.re.MatchString(raw) {
				d.Code, d.Message = r.code, fmt.Sprintf(r.format, name)
				break
			}
		}
		if d.Code == "missing_required" && path != "" && schema.LookupPath(cue.ParsePath(path)).Exists() {
			d.Message += " and must be non-empty"
		}
		if slices.Contains(enumPaths, path) {
			d.Message += enumHint(schema.LookupPath(cue.ParsePath(path)))
		}
		out = append(out, d)
	}
	return out
}

func filePosition(e cueerrors.Error) (CueErrorPosition, bool) {
	for _, p := range cueerrors.Positions(e) {
		if p.Filename() != "" {
			return CueErrorPosition{Filename: p.Filename(), Line: p.Line(), Column: p.Column()}, true
		}
	}
	return CueErrorPosition{}, false
}

// fieldPath joins a CUE path without its leading definition.
func fieldPath(p []string) string {
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

// enumHint lists the string values of a disjunction and its default.
func enumHint(v cue.Value) string {
	var values []string
	if op, args := v.Expr(); op == cue.OrOp {
		for _, a := range args {
			if s, err := a.String(); err == nil && !slices.Contains(values, s) {
				values = append(values, s)
			}
		}
	} else if s, err := v.String(); err == nil {
		values = append(values, s)
	}
	if len(values) == 0 {
		return ""
	}

	hint := fmt.Sprintf(": possible values (%s)", strings.Join(values, ","))
	if d, ok := v.Default(); ok {
		if s, err := d.String(); err == nil {
			hint += fmt.Sprintf(" (default %s)", s)
		}
	}
	return hint
}
