package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
)

var errNoPage = errors.New("no page open")

// evaluate runs a JS function on page and decodes its by-value result.
func evaluate(ctx context.Context, page *rod.Page, js string, out any, args ...any) error {
	if page == nil {
		return errNoPage
	}
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if res == nil {
		return fmt.Errorf("evaluate: empty result")
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return json.Unmarshal(raw, out)
}
