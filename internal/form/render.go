package form

import (
	"fmt"
	"html"
	"strings"
)

// Element ids the browser layer uses to collect values and route clicks.
const (
	OverlayID = "salespulse-modal-overlay"
	ErrorID   = "salespulse-form-error"
	SubmitID  = "salespulse-form-submit"
	CancelID  = "salespulse-form-cancel"
	CloseID   = "salespulse-form-close"
)

// RenderModal builds the dialog markup for a form model. Field values are
// escaped; the browser layer injects this once per open.
func RenderModal(f *Form) string {
	title := "Save Lead"
	submit := "Save Lead"
	if f.Mode == ModeEdit {
		title = "Edit Lead"
		submit = "Update Lead"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div id=%q class="salespulse-modal-overlay"><div class="salespulse-modal">`, OverlayID)

	fmt.Fprintf(&b, `<div class="salespulse-modal-header"><h3 class="salespulse-modal-title">%s</h3>`+
		`<button id=%q class="salespulse-modal-close" type="button">&times;</button></div>`,
		html.EscapeString(title), CloseID)

	b.WriteString(`<div class="salespulse-modal-body">`)
	fmt.Fprintf(&b, `<div id=%q class="salespulse-form-error"></div>`, ErrorID)

	textField(&b, "salespulse-customer-name", "Customer Name *", f.Fields.CustomerName, "")
	textField(&b, "salespulse-lead-title", "Lead Title", f.Fields.Title, "e.g. Logo design project")

	b.WriteString(`<div class="salespulse-field-row">`)
	textField(&b, "salespulse-lead-amount", "Amount", f.Fields.Amount, "0.00")
	currencySelect(&b, f)
	b.WriteString(`</div>`)

	stageSelect(&b, f)
	textAreaField(&b, "salespulse-description", "Notes", f.Fields.Description)

	b.WriteString(`</div>`)

	fmt.Fprintf(&b, `<div class="salespulse-modal-footer">`+
		`<button id=%q class="salespulse-cancel-btn" type="button">Cancel</button>`+
		`<button id=%q class="salespulse-submit-btn" type="button">%s</button></div>`,
		CancelID, SubmitID, html.EscapeString(submit))

	b.WriteString(`</div></div>`)
	return b.String()
}

func textField(b *strings.Builder, id, label, value, placeholder string) {
	fmt.Fprintf(b, `<div class="salespulse-field"><label for=%q>%s</label>`+
		`<input id=%q type="text" value="%s" placeholder="%s"></div>`,
		id, html.EscapeString(label), id, html.EscapeString(value), html.EscapeString(placeholder))
}

func textAreaField(b *strings.Builder, id, label, value string) {
	fmt.Fprintf(b, `<div class="salespulse-field"><label for=%q>%s</label>`+
		`<textarea id=%q rows="3">%s</textarea></div>`,
		id, html.EscapeString(label), id, html.EscapeString(value))
}

func currencySelect(b *strings.Builder, f *Form) {
	b.WriteString(`<div class="salespulse-field"><label for="salespulse-lead-currency">Currency</label>` +
		`<select id="salespulse-lead-currency">`)
	if len(f.Currencies) == 0 && f.Fields.Currency != "" {
		fmt.Fprintf(b, `<option value=%q selected>%s</option>`,
			f.Fields.Currency, html.EscapeString(f.Fields.Currency))
	}
	for _, c := range f.Currencies {
		sel := ""
		if c.Code == f.Fields.Currency {
			sel = " selected"
		}
		label := c.Code
		if c.Symbol != "" {
			label = c.Code + " (" + c.Symbol + ")"
		}
		fmt.Fprintf(b, `<option value=%q%s>%s</option>`, c.Code, sel, html.EscapeString(label))
	}
	b.WriteString(`</select></div>`)
}

func stageSelect(b *strings.Builder, f *Form) {
	b.WriteString(`<div class="salespulse-field"><label for="salespulse-lead-stage">Stage</label>` +
		`<select id="salespulse-lead-stage">`)
	if len(f.Stages) == 0 {
		b.WriteString(`<option value="">Default</option>`)
	}
	for _, s := range f.Stages {
		sel := ""
		if s.ID == f.Fields.StageID {
			sel = " selected"
		}
		fmt.Fprintf(b, `<option value="%d"%s>%s</option>`, s.ID, sel, html.EscapeString(s.Name))
	}
	b.WriteString(`</select></div>`)
}
