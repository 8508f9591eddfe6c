package browser

import (
	"context"
	"strings"

	"github.com/go-rod/rod"

	"github.com/npratt/cellpilot/internal/notebook"
)

const toolbarJS = `() => {
	const host = document.querySelector('#top-toolbar > colab-connect-button');
	const btn = host && host.shadowRoot && host.shadowRoot.querySelector('colab-toolbar-button');
	if (!btn) return {found: false};
	return {
		found: true,
		text: btn.textContent || '',
		tooltip: btn.getAttribute('tooltiptext') || '',
		disabled: btn.hasAttribute('disabled'),
	};
}`

const connectJS = `() => {
	const host = document.querySelector('#connect');
	const inner = host && host.shadowRoot && host.shadowRoot.querySelector('#button');
	const touch = inner && inner.shadowRoot && inner.shadowRoot.querySelector('#button > span.touch');
	if (!touch) return false;
	touch.click();
	return true;
}`

type toolbarResult struct {
	Found    bool   `json:"found"`
	Text     string `json:"text"`
	Tooltip  string `json:"tooltip"`
	Disabled bool   `json:"disabled"`
}

// label prefers the visible text and falls back to the tooltip.
func (r toolbarResult) label() string {
	if text := strings.Join(strings.Fields(r.Text), " "); text != "" {
		return text
	}
	return strings.TrimSpace(r.Tooltip)
}

// Toolbar reads the runtime connect control.
type Toolbar struct {
	page *rod.Page
}

// NewToolbar wraps page.
func NewToolbar(page *rod.Page) *Toolbar {
	return &Toolbar{page: page}
}

// Toolbar returns the control's label and disabled flag.
func (t *Toolbar) Toolbar(ctx context.Context) (string, bool, error) {
	var res toolbarResult
	if err := evaluate(ctx, t.page, toolbarJS, &res); err != nil {
		return "", false, err
	}
	if !res.Found {
		return "", false, notebook.ErrControlNotFound
	}
	return res.label(), res.Disabled, nil
}

// Connect clicks the control.
func (t *Toolbar) Connect(ctx context.Context) error {
	var clicked bool
	if err := evaluate(ctx, t.page, connectJS, &clicked); err != nil {
		return err
	}
	if !clicked {
		return notebook.ErrControlNotFound
	}
	return nil
}
