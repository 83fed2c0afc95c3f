package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fakeControl is one scripted DOM node for the fake page.
type fakeControl struct {
	visible bool
	enabled bool
	value   string
	text    string
	// appearAfter delays existence until that many Count probes have run
	// against the selector, simulating a dependent field rendering late.
	appearAfter int
	probes      int
	// vanishOnClick removes the control when clicked, simulating a popup
	// confirm dismissing its own dialog.
	vanishOnClick []string
	// failInteract makes the next n interactions error, simulating a stale
	// element race.
	failInteract int
	// noEcho makes Fill and SelectOption leave value untouched, simulating a
	// read-only cell or a select whose value attribute differs from the label.
	noEcho bool
}

// fakePage is a scripted Page implementation. Interactions are recorded in
// order so tests can assert exactly what the engine did.
type fakePage struct {
	mu       sync.Mutex
	controls map[string]*fakeControl
	actions  []string
}

func newFakePage() *fakePage {
	return &fakePage{controls: make(map[string]*fakeControl)}
}

// addControl registers a live, enabled control under selector.
func (p *fakePage) addControl(selector string) *fakeControl {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &fakeControl{visible: true, enabled: true}
	p.controls[selector] = c
	return c
}

func (p *fakePage) removeControl(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.controls, selector)
}

func (p *fakePage) record(action, selector string) {
	p.actions = append(p.actions, action+" "+selector)
}

func (p *fakePage) actionLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.actions))
	copy(out, p.actions)
	return out
}

func (p *fakePage) clickCount(selector string) int {
	n := 0
	for _, a := range p.actionLog() {
		if a == "click "+selector {
			n++
		}
	}
	return n
}

func (p *fakePage) lookup(selector string) (*fakeControl, bool) {
	c, ok := p.controls[selector]
	if !ok {
		return nil, false
	}
	if c.probes < c.appearAfter {
		return nil, false
	}
	return c, true
}

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.controls[selector]
	if !ok {
		return 0, nil
	}
	c.probes++
	if c.probes <= c.appearAfter {
		return 0, nil
	}
	return 1, nil
}

func (p *fakePage) Visible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.lookup(selector)
	if !ok {
		return false, nil
	}
	return c.visible, nil
}

func (p *fakePage) Enabled(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.lookup(selector)
	if !ok {
		return false, fmt.Errorf("no node matches %q", selector)
	}
	return c.enabled, nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.lookup(selector)
	if !ok {
		return fmt.Errorf("no node matches %q", selector)
	}
	if c.failInteract > 0 {
		c.failInteract--
		return errors.New("node detached during click")
	}
	p.record("click", selector)
	for _, victim := range c.vanishOnClick {
		delete(p.controls, victim)
	}
	return nil
}

func (p *fakePage) Fill(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.lookup(selector)
	if !ok {
		return fmt.Errorf("no node matches %q", selector)
	}
	if c.failInteract > 0 {
		c.failInteract--
		return errors.New("node detached during fill")
	}
	p.record("fill", selector)
	if !c.noEcho {
		c.value = text
	}
	return nil
}

func (p *fakePage) SelectOption(ctx context.Context, selector, option string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.lookup(selector)
	if !ok {
		return fmt.Errorf("no node matches %q", selector)
	}
	p.record("select", selector)
	if !c.noEcho {
		c.value = option
	}
	return nil
}

func (p *fakePage) SetFiles(ctx context.Context, selector, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.lookup(selector); !ok {
		return fmt.Errorf("no node matches %q", selector)
	}
	p.record("setfiles", selector)
	return nil
}

func (p *fakePage) Value(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.lookup(selector)
	if !ok {
		return "", fmt.Errorf("no node matches %q", selector)
	}
	return c.value, nil
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.lookup(selector)
	if !ok {
		return "", fmt.Errorf("no node matches %q", selector)
	}
	return c.text, nil
}

func testLogger() *zap.Logger { return zap.NewNop() }

// testEngine bundles the engine components with fast test timings.
func testEngine() (*Resolver, *WaitGate, *StepExecutor, *PopupHandler, *FormController, *ReconcileGate) {
	log := zap.NewNop()
	poll := 2 * time.Millisecond
	wait := 100 * time.Millisecond
	resolver := NewResolver(log)
	gate := NewWaitGate(resolver, poll, log)
	executor := NewStepExecutor(gate, wait, log)
	popups := NewPopupHandler(executor, gate, poll, wait, log)
	controller := NewFormController(executor, popups, 2, 0, log)
	reconcile := NewReconcileGate(gate, wait, log)
	return resolver, gate, executor, popups, controller, reconcile
}
