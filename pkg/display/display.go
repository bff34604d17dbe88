// Package display renders batch progress and summaries to the terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"condgen/pkg/colors"
	"condgen/pkg/compiler"
)

// Box drawing characters (rounded)
const (
	boxTopLeft     = "╭"
	boxTopRight    = "╮"
	boxBottomLeft  = "╰"
	boxBottomRight = "╯"
	boxHorizontal  = "─"
	boxVertical    = "│"
)

// Status icons
const (
	iconSuccess = "✓"
	iconFailure = "✗"
	iconWarning = "!"
	iconSkipped = "◌"
)

// palette holds the active ANSI codes, empty when colors are disabled.
type palette struct {
	reset, bold, dim, cyan, green, red, yellow string
}

func activePalette() palette {
	if !colors.Enabled() {
		return palette{}
	}
	return palette{
		reset:  colors.Reset,
		bold:   colors.Bold,
		dim:    colors.Dim,
		cyan:   colors.Cyan,
		green:  colors.Green,
		red:    colors.Red,
		yellow: colors.Yellow,
	}
}

// Display writes run progress for one compiler invocation. It is safe for
// concurrent use; parallel workers report through the same instance.
type Display struct {
	mu sync.Mutex

	out       io.Writer
	pal       palette
	compiler  string
	verbing   string
	numSteps  int
	total     int
	startTime time.Time
	width     int

	// verbose prints every step transition; quiet suppresses everything
	// but failures and the summary.
	verbose bool
	quiet   bool
}

// Option configures a Display.
type Option func(*Display)

func WithVerbose() Option { return func(d *Display) { d.verbose = true } }
func WithQuiet() Option   { return func(d *Display) { d.quiet = true } }

// New creates a display for a compiler run of total units.
func New(out io.Writer, c *compiler.Compiler, total int, opts ...Option) *Display {
	d := &Display{
		out:       out,
		pal:       activePalette(),
		compiler:  c.Name,
		verbing:   c.InvokeDescription,
		numSteps:  c.NumSteps(),
		total:     total,
		startTime: time.Now(),
		width:     72,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// PrintHeader prints the run banner.
func (d *Display) PrintHeader(outputDir string) {
	if d.quiet {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.width
	p := d.pal

	fmt.Fprintf(d.out, "%s%s%s%s%s\n",
		p.cyan, boxTopLeft,
		strings.Repeat(boxHorizontal, w-2),
		boxTopRight, p.reset)

	title := fmt.Sprintf("  condgen · %s", d.compiler)
	padding := max(0, w-2-len(title))
	fmt.Fprintf(d.out, "%s%s%s%s%s%s%s\n",
		p.cyan, boxVertical, p.reset,
		p.bold, title, strings.Repeat(" ", padding),
		p.cyan+boxVertical+p.reset)

	unitLine := fmt.Sprintf("  %s %d unit(s)", d.verbing, d.total)
	padding = max(0, w-2-len(unitLine))
	fmt.Fprintf(d.out, "%s%s%s%s%s%s\n",
		p.cyan, boxVertical, p.reset,
		p.dim+unitLine+p.reset,
		strings.Repeat(" ", padding),
		p.cyan+boxVertical+p.reset)

	fmt.Fprintf(d.out, "%s%s%s%s%s\n",
		p.cyan, boxBottomLeft,
		strings.Repeat(boxHorizontal, w-2),
		boxBottomRight, p.reset)

	if outputDir != "" {
		fmt.Fprintf(d.out, "\n  %sOutput:%s %s\n", p.dim, p.reset, outputDir)
	}
	fmt.Fprintln(d.out)
}

// UnitStarted announces a unit beginning work.
func (d *Display) UnitStarted(index int, name string) {
	if d.quiet || !d.verbose {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pal
	fmt.Fprintf(d.out, "  %s[%d/%d]%s %s%s%s %s\n",
		p.dim, index+1, d.total, p.reset,
		p.cyan, d.verbing, p.reset, name)
}

// UnitProgress reports a step transition within a unit.
func (d *Display) UnitProgress(index int, name string, step int, status string) {
	if d.quiet || !d.verbose {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pal
	fmt.Fprintf(d.out, "    %s%d/%d%s %s\n",
		p.dim, step+1, d.numSteps, p.reset, status)
}

// UnitFinished prints the outcome line of one unit.
func (d *Display) UnitFinished(index int, name string, res compiler.Result, dur time.Duration) {
	p := d.pal
	icon, clr := iconSuccess, p.green
	switch {
	case res.Failed():
		icon, clr = iconFailure, p.red
	case res.Warned():
		icon, clr = iconWarning, p.yellow
	case !res.Invoked:
		icon, clr = iconSkipped, p.dim
	}
	if d.quiet && !res.Failed() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !res.Invoked {
		fmt.Fprintf(d.out, "  %s%s%s  %-32s %s(up to date)%s\n",
			clr, icon, p.reset, name, p.dim, p.reset)
		return
	}
	fmt.Fprintf(d.out, "  %s%s%s  %-32s %s%-24s%s  %s%8s%s\n",
		clr, icon, p.reset,
		name,
		p.dim, res.Reason.Reason.String(), p.reset,
		p.dim, formatDuration(dur), p.reset)
	if res.Short != "" && res.Short != "ok" {
		fmt.Fprintf(d.out, "     %s%s%s\n", p.dim, res.Short, p.reset)
	}
}

// UnitError prints a failure that prevented a unit from completing.
func (d *Display) UnitError(index int, name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pal
	fmt.Fprintf(d.out, "  %s%s%s  %s: %v\n",
		p.red, iconFailure, p.reset, name, err)
}

// PrintSummary prints the closing tally. Percentages are of the total unit
// count.
func (d *Display) PrintSummary(invoked, skipped, warned, failed int) {
	if d.quiet && failed == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pal

	fmt.Fprintln(d.out)
	fmt.Fprintf(d.out, "  %s%s%s\n", p.cyan, strings.Repeat(boxHorizontal, d.width-4), p.reset)

	pct := func(n int) string {
		if d.total == 0 {
			return "0%"
		}
		return fmt.Sprintf("%d%%", n*100/d.total)
	}

	status := fmt.Sprintf("%s%d/%d ok%s", p.green, d.total-failed, d.total, p.reset)
	if failed > 0 {
		status = fmt.Sprintf("%s%d failed (%s)%s", p.red, failed, pct(failed), p.reset)
	}
	fmt.Fprintf(d.out, "  %sElapsed:%s %s  %s·%s  %sInvoked:%s %d (%s)  %s·%s  %sUp to date:%s %d  %s·%s  %s\n",
		p.dim, p.reset, formatDuration(time.Since(d.startTime)),
		p.dim, p.reset,
		p.dim, p.reset, invoked, pct(invoked),
		p.dim, p.reset,
		p.dim, p.reset, skipped,
		p.dim, p.reset,
		status)
	if warned > 0 {
		fmt.Fprintf(d.out, "  %sWarnings:%s %d (%s)\n", p.yellow, p.reset, warned, pct(warned))
	}
	fmt.Fprintln(d.out)
}

// formatDuration formats a duration nicely
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
