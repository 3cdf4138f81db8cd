// Package render drives page-by-page traversal of a form session and hands
// presentation data to caller-supplied hooks. It owns no visual output: the
// host application decides how a field or a progress bar looks, this package
// decides which page is current and whether navigation is allowed.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tbxark/formflow/form"
	"github.com/tbxark/formflow/schema"
	"github.com/tbxark/formflow/validation"
)

// Navigator gates page traversal on validation. Forward navigation and
// submission are refused while a blocking error exists on a visible field;
// going backward is always allowed.
type Navigator struct {
	store *form.Store
	hooks Hooks

	mu      sync.Mutex
	current int
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithHooks installs the presentation hooks.
func WithHooks(h Hooks) NavigatorOption {
	return func(n *Navigator) {
		n.hooks = h
	}
}

// NewNavigator starts a traversal at the first visible page.
func NewNavigator(store *form.Store, opts ...NavigatorOption) *Navigator {
	n := &Navigator{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	n.current = n.firstVisible()
	return n
}

// Store returns the underlying form session.
func (n *Navigator) Store() *form.Store {
	return n.store
}

// CurrentPageIndex returns the 0-based index of the current page within the
// schema's page list.
func (n *Navigator) CurrentPageIndex() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// CurrentPage returns the current page definition.
func (n *Navigator) CurrentPage() *schema.Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pageAt(n.current)
}

// IsLastPage reports whether no visible page follows the current one, which
// is when the UI swaps "next" for "submit".
func (n *Navigator) IsLastPage() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	values := n.store.Values()
	return n.nextVisible(n.current, values) < 0
}

// Next validates the current page and advances to the next visible page when
// nothing blocking failed. On refusal the index is unchanged; the validation
// results are already stored for display, nothing else happens.
func (n *Navigator) Next(ctx context.Context) bool {
	n.mu.Lock()
	current := n.current
	n.mu.Unlock()

	results := n.store.ValidatePage(ctx, current)
	if validation.AnyBlocking(results) {
		slog.Debug("Navigation refused by blocking validation", "page", current)
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != current {
		return false
	}
	values := n.store.Values()
	next := n.nextVisible(current, values)
	if next < 0 {
		return false
	}
	n.current = next
	return true
}

// Previous moves to the closest visible earlier page, with a floor at the
// first page. No validation gate applies going backward.
func (n *Navigator) Previous() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	values := n.store.Values()
	for i := n.current - 1; i >= 0; i-- {
		if n.pageVisible(i, values) {
			n.current = i
			return true
		}
	}
	return false
}

// GoToPage jumps directly to a page, skipping the validation gate. Intended
// for review flows where the user revisits an earlier page from a summary.
func (n *Navigator) GoToPage(index int) bool {
	pages := n.store.Schema().Pages
	if index < 0 || index >= len(pages) {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.pageVisible(index, n.store.Values()) {
		return false
	}
	n.current = index
	return true
}

// Submit runs full validation, field-level and cross-field, over every
// visible field. Any blocking error refuses the submission and the submit
// hook is not invoked. On success the values snapshot is handed to the
// hook and the navigator's own state is left untouched: the caller decides
// what a completed form looks like.
func (n *Navigator) Submit(ctx context.Context) (bool, error) {
	results := n.store.ValidateAll(ctx)
	for name, r := range n.store.ValidateCrossField() {
		if existing, ok := results[name]; !ok || existing.Valid {
			results[name] = r
		}
	}
	if validation.AnyBlocking(results) {
		slog.Debug("Submission refused by blocking validation")
		return false, nil
	}

	submit := n.store.Hooks().OnSubmit
	if submit == nil {
		return false, fmt.Errorf("no submission sink configured")
	}
	if err := submit(ctx, n.store.Values()); err != nil {
		return false, fmt.Errorf("submission failed: %w", err)
	}
	return true, nil
}

func (n *Navigator) pageAt(index int) *schema.Page {
	pages := n.store.Schema().Pages
	if index < 0 || index >= len(pages) {
		return nil
	}
	return &pages[index]
}

func (n *Navigator) pageVisible(index int, values map[string]any) bool {
	page := n.pageAt(index)
	return page != nil && page.ShowIf.Evaluate(values)
}

func (n *Navigator) firstVisible() int {
	values := n.store.Values()
	for i := range n.store.Schema().Pages {
		if n.pageVisible(i, values) {
			return i
		}
	}
	return 0
}

func (n *Navigator) nextVisible(from int, values map[string]any) int {
	pages := n.store.Schema().Pages
	for i := from + 1; i < len(pages); i++ {
		if n.pageVisible(i, values) {
			return i
		}
	}
	return -1
}
