package cli

import (
	"fmt"
	"os"

	progressbar "github.com/schollz/progressbar/v3"

	"github.com/cheribuild/cheribuild/pkg/types"
)

// progressBar renders a target-level progress bar on stderr while the
// engine walks the plan. It implements interfaces.ProgressReporter and
// is only attached for interactive runs, so log output and the bar do
// not fight over the terminal.
type progressBar struct {
	bar *progressbar.ProgressBar
}

func newProgressBar() *progressBar {
	return &progressBar{}
}

func (p *progressBar) PlanStarted(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("building"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressBar) TargetStarted(name string, index, total int) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("[%d/%d] %s", index+1, total, name))
}

func (p *progressBar) TargetFinished(name string, st types.ExecutionState) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *progressBar) PlanFinished() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
