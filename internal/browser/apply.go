package browser

import (
	"context"
	"fmt"

	"github.com/salespulse/bridge/internal/devlog"
	"github.com/salespulse/bridge/internal/form"
	"github.com/salespulse/bridge/internal/inject"
)

// applyScript executes a whole mutation plan in one evaluation so the page
// never shows a half-applied pass.
const applyScript = `(ops) => {
	const build = (html) => {
		const tpl = document.createElement('template');
		tpl.innerHTML = html;
		return tpl.content.firstElementChild;
	};
	for (const op of ops) {
		if (op.action === 'insert') {
			const anchor = document.querySelectorAll(op.selector)[op.index];
			const node = anchor && build(op.html);
			if (!node) continue;
			if (op.position === 'prepend') anchor.prepend(node);
			else anchor.after(node);
		} else if (op.action === 'replace') {
			const target = document.querySelector(op.selector);
			const node = target && build(op.html);
			if (node) target.replaceWith(node);
		} else if (op.action === 'remove') {
			document.querySelectorAll(op.selector).forEach((n) => n.remove());
		}
	}
}`

// Apply executes a mutation plan on the live page.
func (s *Session) Apply(ctx context.Context, plan *inject.Plan) error {
	if plan == nil || plan.Empty() {
		return nil
	}
	ops := make([]map[string]any, 0, len(plan.Ops))
	for _, op := range plan.Ops {
		ops = append(ops, map[string]any{
			"action":   actionName(op.Action),
			"selector": op.Selector,
			"index":    op.Index,
			"position": positionName(op.Position),
			"html":     op.HTML,
		})
	}
	_, err := s.evaluate(applyScript, ops)
	if err == nil {
		devlog.Printf("[Browser] applied %d op(s)", len(plan.Ops))
	}
	return err
}

func actionName(a inject.Action) string {
	switch a {
	case inject.ActionReplace:
		return "replace"
	case inject.ActionRemove:
		return "remove"
	default:
		return "insert"
	}
}

func positionName(p inject.Position) string {
	if p == inject.PositionAfter {
		return "after"
	}
	return "prepend"
}

// EnsureStyles injects the fragment stylesheet once per document.
func (s *Session) EnsureStyles(ctx context.Context) error {
	script := `(css) => {
		if (document.getElementById('` + inject.StyleID + `')) return;
		const style = document.createElement('style');
		style.id = '` + inject.StyleID + `';
		style.textContent = css;
		document.head.appendChild(style);
	}`
	_, err := s.evaluate(script, inject.Styles)
	return err
}

// ExposeClickHandler routes clicks on injected fragments back to Go with
// the fragment id. Disabled buttons never fire.
func (s *Session) ExposeClickHandler(fn func(fragmentID string)) error {
	err := s.expose("__salespulseClick", func(args []any) {
		if len(args) == 1 {
			if id, ok := args[0].(string); ok && id != "" {
				fn(id)
			}
		}
	})
	if err != nil {
		return err
	}
	script := `() => {
		if (window.__salespulseClickBound) return;
		window.__salespulseClickBound = true;
		document.addEventListener('click', (ev) => {
			const frag = ev.target.closest && ev.target.closest('[data-sp-id]');
			if (!frag) return;
			const btn = ev.target.closest('button');
			if (!btn || btn.disabled) return;
			ev.preventDefault();
			ev.stopPropagation();
			window.__salespulseClick(frag.getAttribute('data-sp-id'));
		}, true);
	}`
	_, err = s.evaluate(script, nil)
	return err
}

// InstallMutationObserver invokes a Go callback on subtree churn outside
// the bridge's own fragments. The caller debounces.
func (s *Session) InstallMutationObserver(fn func()) error {
	if err := s.expose("__salespulseMutated", func([]any) { fn() }); err != nil {
		return err
	}
	script := `() => {
		if (window.__salespulseObserver) return;
		const mo = new MutationObserver((muts) => {
			for (const m of muts) {
				const t = m.target;
				if (t && t.closest && t.closest('[data-sp-id]')) continue;
				window.__salespulseMutated();
				return;
			}
		});
		mo.observe(document.body, { childList: true, subtree: true });
		window.__salespulseObserver = mo;
	}`
	_, err := s.evaluate(script, nil)
	return err
}

// ExposeModalHandler routes lead-form button presses back to Go. action is
// "submit" or "cancel"; clicking the overlay backdrop cancels.
func (s *Session) ExposeModalHandler(fn func(action string)) error {
	err := s.expose("__salespulseModal", func(args []any) {
		if len(args) == 1 {
			if action, ok := args[0].(string); ok {
				fn(action)
			}
		}
	})
	if err != nil {
		return err
	}
	script := `() => {
		if (window.__salespulseModalBound) return;
		window.__salespulseModalBound = true;
		document.addEventListener('click', (ev) => {
			const overlay = document.getElementById('` + form.OverlayID + `');
			if (!overlay || !overlay.contains(ev.target)) return;
			if (ev.target.closest('#` + form.SubmitID + `')) { window.__salespulseModal('submit'); return; }
			if (ev.target.closest('#` + form.CancelID + `') || ev.target.closest('#` + form.CloseID + `')) {
				window.__salespulseModal('cancel');
				return;
			}
			if (ev.target === overlay) window.__salespulseModal('cancel');
		}, true);
	}`
	_, err = s.evaluate(script, nil)
	return err
}

// ShowModal replaces any open lead form with the given markup.
func (s *Session) ShowModal(ctx context.Context, html string) error {
	script := `(html) => {
		const old = document.getElementById('` + form.OverlayID + `');
		if (old) old.remove();
		const tpl = document.createElement('template');
		tpl.innerHTML = html;
		const node = tpl.content.firstElementChild;
		if (node) document.body.appendChild(node);
	}`
	_, err := s.evaluate(script, html)
	return err
}

// CloseModal removes the lead form if open.
func (s *Session) CloseModal(ctx context.Context) error {
	_, err := s.evaluate(`() => {
		const overlay = document.getElementById('`+form.OverlayID+`');
		if (overlay) overlay.remove();
	}`, nil)
	return err
}

// ModalValues reads the current lead-form inputs.
func (s *Session) ModalValues(ctx context.Context) (form.Fields, error) {
	res, err := s.evaluate(`() => {
		const v = (id) => {
			const el = document.getElementById(id);
			return el ? el.value : '';
		};
		return {
			customer_name: v('salespulse-customer-name'),
			title: v('salespulse-lead-title'),
			amount: v('salespulse-lead-amount'),
			currency: v('salespulse-lead-currency'),
			stage_id: v('salespulse-lead-stage'),
			description: v('salespulse-description'),
		};
	}`, nil)
	if err != nil {
		return form.Fields{}, err
	}

	m, ok := res.(map[string]any)
	if !ok {
		return form.Fields{}, fmt.Errorf("unexpected form value shape: %T", res)
	}
	f := form.Fields{
		CustomerName: str(m["customer_name"]),
		Title:        str(m["title"]),
		Amount:       str(m["amount"]),
		Currency:     str(m["currency"]),
		Description:  str(m["description"]),
	}
	if id := str(m["stage_id"]); id != "" {
		fmt.Sscanf(id, "%d", &f.StageID)
	}
	return f, nil
}

// SetModalError shows a message in the form's inline error box.
func (s *Session) SetModalError(ctx context.Context, msg string) error {
	script := `(msg) => {
		const box = document.getElementById('` + form.ErrorID + `');
		if (!box) return;
		box.textContent = msg;
		box.classList.toggle('visible', msg !== '');
	}`
	_, err := s.evaluate(script, msg)
	return err
}

func str(v any) string {
	sv, _ := v.(string)
	return sv
}

// ----------------------------------------------------------------------
// PanelDriver
// ----------------------------------------------------------------------

// detailToggleScript clicks a chat widget's three-dots toggle. The toggle
// is an fl-icon, not a button: fltrackinglabel="OpenSettingsChatBox", with
// the ui-more-vert icon as fallback when the label is missing.
const detailToggleScript = `(fragId) => {
	const frag = document.querySelector('[data-sp-id="' + fragId + '"]');
	if (!frag) return false;
	const widget = frag.closest('app-messaging-chat-contents')
		|| frag.closest('app-messaging-chat-box')
		|| frag.closest('.ChatBox')
		|| frag.closest('app-messaging-chat');
	if (!widget) return false;
	let toggle = widget.querySelector('fl-icon[fltrackinglabel="OpenSettingsChatBox"]');
	if (!toggle) {
		for (const icon of widget.querySelectorAll('fl-icon')) {
			if (icon.querySelector('span[data-name="ui-more-vert"], .IconContainer[data-name="ui-more-vert"]')) {
				toggle = icon;
				break;
			}
		}
	}
	if (!toggle) return false;
	toggle.click();
	return true;
}`

// panelBackScript leaves an open detail panel through its HeaderBackCta
// icon. A widget without app-messaging-chat-details is already back in the
// chat view, nothing to do.
const panelBackScript = `(fragId) => {
	const frag = document.querySelector('[data-sp-id="' + fragId + '"]');
	const widget = frag && (frag.closest('app-messaging-chat-contents')
		|| frag.closest('app-messaging-chat-box')
		|| frag.closest('.ChatBox')
		|| frag.closest('app-messaging-chat'));
	if (!widget) return false;
	if (!widget.querySelector('app-messaging-chat-details')) return false;
	const back = widget.querySelector('fl-icon[fltrackinglabel="HeaderBackCta"]');
	if (!back) return false;
	back.dispatchEvent(new MouseEvent('click', { bubbles: true, cancelable: true, view: window }));
	return true;
}`

// OpenDetailPanel clicks the details toggle of the widget owning the
// fragment. Implements inject.PanelDriver.
func (s *Session) OpenDetailPanel(ctx context.Context, fragmentID string) (bool, error) {
	res, err := s.evaluate(detailToggleScript, fragmentID)
	if err != nil {
		return false, err
	}
	opened, _ := res.(bool)
	return opened, nil
}

// NavigateBack clicks the detail panel's back control for the widget owning
// the fragment. Implements inject.PanelDriver.
func (s *Session) NavigateBack(ctx context.Context, fragmentID string) error {
	_, err := s.evaluate(panelBackScript, fragmentID)
	return err
}
