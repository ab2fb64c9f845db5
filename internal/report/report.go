// Package report renders filter results for humans (coloured text) and
// machines (JSON, YAML or TOML).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/ZebulonRouseFrantzich/arfilter/internal/arch"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/config"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/filter"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/logging"
	"github.com/ZebulonRouseFrantzich/arfilter/internal/transaction"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Formats lists the accepted --format values.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat validates a --format value. Empty means text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want text, json, yaml or toml)", s)
}

// Writer writes reports to an output stream.
type Writer struct {
	out     io.Writer
	format  Format
	verbose bool

	ok, warn, fail, dim *color.Color
}

// Option configures a Writer.
type Option func(*Writer)

// WithColor forces coloured text output on or off. By default colour is
// used only when the output is a terminal.
func WithColor(on bool) Option {
	return func(w *Writer) { w.setColor(on) }
}

// WithVerbose lists every member in text output, not only the dropped ones.
func WithVerbose(v bool) Option {
	return func(w *Writer) { w.verbose = v }
}

// New creates a Writer.
func New(out io.Writer, format Format, opts ...Option) *Writer {
	w := &Writer{
		out:    out,
		format: format,
		ok:     color.New(color.FgGreen, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
	}
	w.setColor(logging.IsTerminal(out))
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) setColor(on bool) {
	for _, c := range []*color.Color{w.ok, w.warn, w.fail, w.dim} {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

type resultsDoc struct {
	Status   filter.Status    `json:"status" yaml:"status" toml:"status"`
	ExitCode int              `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
	Results  []*filter.Result `json:"results" yaml:"results" toml:"results"`
}

// Results writes the outcome of one or more filter runs.
func (w *Writer) Results(results []*filter.Result) error {
	if w.format != FormatText {
		worst := filter.Worst(results)
		return w.encode(resultsDoc{Status: worst, ExitCode: worst.ExitCode(), Results: results})
	}

	var sb strings.Builder
	for _, r := range results {
		w.writeResult(&sb, r)
	}
	if len(results) > 1 {
		w.writeSummary(&sb, results)
	}
	_, err := io.WriteString(w.out, sb.String())
	return err
}

func (w *Writer) marker(r *filter.Result) string {
	switch {
	case r.Status == filter.StatusFailure || r.Status == filter.StatusConfigError:
		return w.fail.Sprint("[FAIL]")
	case len(r.Diagnostics) > 0:
		return w.warn.Sprint("[WARN]")
	default:
		return w.ok.Sprint("[OK]")
	}
}

func (w *Writer) writeResult(sb *strings.Builder, r *filter.Result) {
	fmt.Fprintf(sb, "%s %s (%s): %s\n", w.marker(r), r.Archive, r.Target, r.Reason)
	if r.Counts.Total > 0 {
		fmt.Fprintf(sb, "  kept %d, filtered %d of %d members", r.Counts.Kept, r.Counts.Filtered, r.Counts.Total)
		if r.Counts.Skipped > 0 {
			fmt.Fprintf(sb, " (%d skipped)", r.Counts.Skipped)
		}
		sb.WriteString("\n")
	}
	if r.Changed() {
		fmt.Fprintf(sb, "  size %s -> %s\n", humanSize(r.SizeBefore), humanSize(r.SizeAfter))
	}

	for _, m := range r.Members {
		c := m.Classification
		switch {
		case !c.Compatible:
			fmt.Fprintf(sb, "  %s %s: %s\n", w.fail.Sprint("drop"), m.Member.Name, c.Reason)
		case w.verbose:
			fmt.Fprintf(sb, "  %s %s: %s\n", w.dim.Sprint("keep"), m.Member.Name, c.Reason)
		}
	}
	for _, rec := range r.Recovered {
		fmt.Fprintf(sb, "  %s recovered %s: %s\n", w.warn.Sprint("!"), rec.ID, rec.Note)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(sb, "  %s %s\n", w.warn.Sprint("!"), d)
	}
	if r.Error != "" {
		fmt.Fprintf(sb, "  %s %s\n", w.fail.Sprint("error:"), r.Error)
	}
}

func (w *Writer) writeSummary(sb *strings.Builder, results []*filter.Result) {
	counts := make(map[filter.Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	var parts []string
	for _, s := range []filter.Status{filter.StatusSuccess, filter.StatusNoOp, filter.StatusFailure, filter.StatusConfigError} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	fmt.Fprintf(sb, "\nSUMMARY: %d archives: %s\n", len(results), strings.Join(parts, ", "))
}

type objectsDoc struct {
	Target  string                `json:"target" yaml:"target" toml:"target"`
	Objects []filter.ObjectResult `json:"objects" yaml:"objects" toml:"objects"`
}

// Objects writes loose-object classifications.
func (w *Writer) Objects(target string, results []filter.ObjectResult) error {
	if w.format != FormatText {
		return w.encode(objectsDoc{Target: target, Objects: results})
	}

	var sb strings.Builder
	for _, r := range results {
		c := r.Classification
		mark := w.ok.Sprint("[OK]")
		switch {
		case !c.Compatible:
			mark = w.fail.Sprint("[FAIL]")
		case c.Probe == "":
			mark = w.warn.Sprint("[WARN]")
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", mark, r.Path, c.Reason)
		for _, e := range c.Errors {
			fmt.Fprintf(&sb, "  %s %s\n", w.dim.Sprint("-"), e)
		}
	}
	_, err := io.WriteString(w.out, sb.String())
	return err
}

type targetsDoc struct {
	Targets []arch.Target `json:"targets" yaml:"targets" toml:"targets"`
}

// Targets lists the registered targets and their tokens.
func (w *Writer) Targets(targets []arch.Target) error {
	if w.format != FormatText {
		return w.encode(targetsDoc{Targets: targets})
	}

	var sb strings.Builder
	for _, t := range targets {
		fmt.Fprintf(&sb, "%s\n", w.ok.Sprint(t.ABI))
		fmt.Fprintf(&sb, "  machine:  %s (%d-bit)\n", t.Machine, t.Bits)
		if len(t.Aliases) > 0 {
			fmt.Fprintf(&sb, "  aliases:  %s\n", strings.Join(t.Aliases, ", "))
		}
		fmt.Fprintf(&sb, "  match:    %s\n", strings.Join(t.Match, ", "))
		if w.verbose && len(t.Exclude) > 0 {
			fmt.Fprintf(&sb, "  exclude:  %s\n", strings.Join(t.Exclude, ", "))
		}
	}
	_, err := io.WriteString(w.out, sb.String())
	return err
}

type recoveriesDoc struct {
	Recovered []transaction.Recovery `json:"recovered" yaml:"recovered" toml:"recovered"`
}

// Recoveries writes what `arfilter recover` did.
func (w *Writer) Recoveries(recs []transaction.Recovery) error {
	if w.format != FormatText {
		if recs == nil {
			recs = []transaction.Recovery{}
		}
		return w.encode(recoveriesDoc{Recovered: recs})
	}

	var sb strings.Builder
	if len(recs) == 0 {
		sb.WriteString(w.ok.Sprint("[OK]") + " nothing to recover\n")
	}
	for _, r := range recs {
		mark := w.ok.Sprint("[OK]")
		if r.Restored {
			mark = w.warn.Sprint("[WARN]")
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", mark, r.Archive, r.Note)
	}
	_, err := io.WriteString(w.out, sb.String())
	return err
}

type archiveDoc struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	ABI    string `json:"abi" yaml:"abi" toml:"abi"`
	Status string `json:"status" yaml:"status" toml:"status"`
	Size   int64  `json:"size" yaml:"size" toml:"size"`
}

type archivesDoc struct {
	Archives []archiveDoc `json:"archives" yaml:"archives" toml:"archives"`
}

// Archives writes the on-disk status of configured archives.
func (w *Writer) Archives(statuses []config.ArchiveWithStatus) error {
	if w.format != FormatText {
		doc := archivesDoc{Archives: make([]archiveDoc, len(statuses))}
		for i, s := range statuses {
			doc.Archives[i] = archiveDoc{Path: s.Archive.Path, ABI: s.Archive.ABI, Status: s.Status.String(), Size: s.Size}
		}
		return w.encode(doc)
	}

	var sb strings.Builder
	for _, s := range statuses {
		sym := s.Status.Symbol()
		switch s.Status {
		case config.StatusPresent:
			sym = w.ok.Sprint(sym)
		case config.StatusMissing:
			sym = w.fail.Sprint(sym)
		default:
			sym = w.warn.Sprint(sym)
		}
		fmt.Fprintf(&sb, "  %s %-12s %s", sym, s.Archive.ABI, s.Archive.Path)
		if s.Status == config.StatusPresent {
			fmt.Fprintf(&sb, " (%s)", humanSize(s.Size))
		} else {
			fmt.Fprintf(&sb, " (%s)", s.Status)
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w.out, sb.String())
	return err
}

func (w *Writer) encode(v any) error {
	var (
		data []byte
		err  error
	)
	switch w.format {
	case FormatJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		data, err = yaml.Marshal(v)
	case FormatTOML:
		data, err = toml.Marshal(v)
	default:
		return fmt.Errorf("unknown output format %q", w.format)
	}
	if err != nil {
		return fmt.Errorf("encode %s report: %w", w.format, err)
	}
	_, err = w.out.Write(data)
	return err
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
