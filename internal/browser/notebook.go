package browser

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/npratt/cellpilot/internal/notebook"
	"github.com/npratt/cellpilot/internal/poll"
)

const countJS = `() => document.querySelectorAll('.cell').length`

const runJS = `(i) => {
	const cell = document.querySelectorAll('.cell')[i];
	if (!cell) return false;
	const btn = cell.querySelector('colab-run-button');
	const target = btn && btn.shadowRoot && btn.shadowRoot.querySelector('div');
	if (!target) return false;
	target.click();
	return true;
}`

const probeJS = `(i) => {
	const cell = document.querySelectorAll('.cell')[i];
	if (!cell) return {found: false, reason: 'unit not found'};
	const btn = cell.querySelector('colab-run-button');
	if (!btn || !btn.shadowRoot) return {found: false, reason: 'run button not found'};
	const exec = btn.shadowRoot.querySelector('.cell-execution');
	if (!exec) return {found: false, reason: 'execution indicator not found'};
	const out = cell.querySelector('div.codecell-input-output div.output div.output-content div.output-iframe-container');
	return {
		found: true,
		running: exec.classList.contains('running') || exec.classList.contains('animating'),
		focused: exec.classList.contains('focused'),
		error: exec.classList.contains('error') || !!exec.querySelector('.error'),
		text: out ? out.textContent : '',
	};
}`

const dialogButton = `document.querySelector('body > mwc-dialog > md-text-button:nth-child(3)')`

const dialogPresentJS = `() => {
	const btn = ` + dialogButton + `;
	return !!(btn && btn.shadowRoot && btn.shadowRoot.querySelector('#button > span.touch'));
}`

const dialogAckJS = `() => {
	const btn = ` + dialogButton + `;
	const touch = btn && btn.shadowRoot && btn.shadowRoot.querySelector('#button > span.touch');
	if (!touch) return false;
	touch.click();
	return true;
}`

// probeResult is the raw shape probeJS returns.
type probeResult struct {
	Found   bool   `json:"found"`
	Reason  string `json:"reason"`
	Running bool   `json:"running"`
	Focused bool   `json:"focused"`
	Error   bool   `json:"error"`
	Text    string `json:"text"`
}

func (r probeResult) probe() notebook.Probe {
	if !r.Found {
		reason := r.Reason
		if reason == "" {
			reason = "unit not found"
		}
		return notebook.Unavailable(reason)
	}
	return notebook.Available(notebook.Status{
		Running:  r.Running,
		Focused:  r.Focused,
		HasError: r.Error,
		Output:   splitOutput(r.Text),
	})
}

// splitOutput trims the container text and splits it into lines.
func splitOutput(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Notebook reads and operates the units of a notebook page.
type Notebook struct {
	page       *rod.Page
	dialogWait time.Duration
}

// NewNotebook wraps page. dialogWait bounds each restart dialog check.
func NewNotebook(page *rod.Page, dialogWait time.Duration) *Notebook {
	return &Notebook{page: page, dialogWait: dialogWait}
}

// Count returns the number of units on the page.
func (n *Notebook) Count(ctx context.Context) (int, error) {
	var count int
	if err := evaluate(ctx, n.page, countJS, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Run clicks the unit's run control.
func (n *Notebook) Run(ctx context.Context, index int) error {
	var clicked bool
	if err := evaluate(ctx, n.page, runJS, &clicked, index); err != nil {
		return err
	}
	if !clicked {
		return notebook.ErrControlNotFound
	}
	return nil
}

// Probe reads the unit's execution indicator and output.
func (n *Notebook) Probe(ctx context.Context, index int) notebook.Probe {
	var res probeResult
	if err := evaluate(ctx, n.page, probeJS, &res, index); err != nil {
		return notebook.Unavailable(err.Error())
	}
	return res.probe()
}

// Present waits up to dialogWait for the restart dialog. A zero wait checks
// once.
func (n *Notebook) Present(ctx context.Context) bool {
	check := func(ctx context.Context) (bool, error) {
		var present bool
		if err := evaluate(ctx, n.page, dialogPresentJS, &present); err != nil {
			return false, nil
		}
		return present, nil
	}
	if n.dialogWait <= 0 {
		ok, _ := check(ctx)
		return ok
	}
	res := poll.Until(ctx, poll.Options{Interval: 100 * time.Millisecond, Timeout: n.dialogWait}, check)
	return res.OK()
}

// Acknowledge clicks the dialog's confirm button.
func (n *Notebook) Acknowledge(ctx context.Context) error {
	var clicked bool
	if err := evaluate(ctx, n.page, dialogAckJS, &clicked); err != nil {
		return err
	}
	if !clicked {
		return notebook.ErrControlNotFound
	}
	return nil
}
