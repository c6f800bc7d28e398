package inject

// StyleID is the id of the injected <style> element, used to keep the
// stylesheet a singleton across passes.
const StyleID = "salespulse-styles"

// Styles is the stylesheet for every injected fragment and the lead form.
const Styles = `
/* Save Lead button in the inbox sidebar */
.salespulse-cta-container { padding: 0 16px; margin-bottom: 12px; }
.salespulse-save-btn {
  display: flex; align-items: center; justify-content: center; gap: 8px;
  width: 100%; padding: 10px 16px;
  background: linear-gradient(135deg, #6366f1 0%, #8b5cf6 100%);
  color: white; border: none; border-radius: 4px;
  font-size: 14px; font-weight: 500; cursor: pointer;
  transition: all 0.2s ease; font-family: inherit;
}
.salespulse-save-btn:hover:not(:disabled) { opacity: 0.9; transform: translateY(-1px); box-shadow: 0 4px 12px rgba(99, 102, 241, 0.3); }
.salespulse-save-btn:disabled { opacity: 0.7; cursor: not-allowed; }
.salespulse-save-btn svg { flex-shrink: 0; }

.salespulse-edit-btn { background: linear-gradient(135deg, #10b981 0%, #059669 100%); }
.salespulse-owner-btn { background: linear-gradient(135deg, #f59e0b 0%, #d97706 100%); cursor: default; opacity: 0.9; }
.salespulse-owner-btn:hover { transform: none; box-shadow: none; }
.salespulse-loading-btn { background: #9ca3af; }

.salespulse-btn-spinner {
  width: 14px; height: 14px;
  border: 2px solid rgba(255, 255, 255, 0.3); border-top-color: white;
  border-radius: 50%; animation: sp-spin 0.8s linear infinite;
}
@keyframes sp-spin { to { transform: rotate(360deg); } }

/* Stage badges */
.salespulse-inbox-stage-badge { display: flex; align-items: center; justify-content: center; gap: 6px; margin-top: 8px; padding: 6px 0; }
.salespulse-stage-badge {
  display: inline-flex; align-items: center; padding: 3px 10px;
  border-radius: 12px; font-size: 11px; font-weight: 600; color: white;
  text-transform: uppercase; letter-spacing: 0.3px;
  text-shadow: 0 1px 1px rgba(0, 0, 0, 0.2); box-shadow: 0 1px 3px rgba(0, 0, 0, 0.15);
}

/* Chat widget buttons */
.salespulse-widget-btn-container { display: inline-flex; align-items: center; gap: 6px; margin-right: 8px; }
.salespulse-widget-btn {
  display: inline-flex; align-items: center; gap: 6px; padding: 4px 12px;
  background: linear-gradient(135deg, #6366f1 0%, #8b5cf6 100%);
  color: white; border: none; border-radius: 4px;
  font-size: 12px; font-weight: 600; cursor: pointer;
  transition: all 0.2s ease; font-family: inherit; text-decoration: none;
}
.salespulse-widget-btn:hover:not(:disabled) { opacity: 0.9; transform: translateY(-1px); box-shadow: 0 2px 8px rgba(99, 102, 241, 0.3); }
.salespulse-widget-btn:disabled { opacity: 0.7; cursor: not-allowed; }
.salespulse-widget-btn .salespulse-btn-spinner { width: 12px; height: 12px; }

/* Thread-list badges */
.salespulse-list-badge-container { display: inline-flex; align-items: center; margin-right: 6px; }
.salespulse-list-stage-badge, .salespulse-list-fresh-badge, .salespulse-list-owner-badge {
  display: inline-flex; align-items: center; gap: 3px; padding: 1px 8px;
  border-radius: 10px; font-size: 10px; font-weight: 600; color: white;
  text-transform: uppercase; letter-spacing: 0.3px; white-space: nowrap;
}
.salespulse-list-fresh-badge { background: #0ea5e9; }
.salespulse-list-owner-badge { background: #f59e0b; }
.salespulse-list-owner-badge svg { width: 10px; height: 10px; }
.salespulse-list-loading-badge { display: inline-flex; align-items: center; }
.salespulse-list-spinner {
  width: 10px; height: 10px;
  border: 2px solid rgba(107, 114, 128, 0.3); border-top-color: #6b7280;
  border-radius: 50%; animation: sp-spin 0.8s linear infinite;
}

/* Lead form modal */
.salespulse-modal-overlay {
  position: fixed; inset: 0; z-index: 999999;
  display: flex; align-items: center; justify-content: center;
  background: rgba(15, 23, 42, 0.55);
}
.salespulse-modal {
  width: 440px; max-width: calc(100vw - 32px); max-height: calc(100vh - 64px);
  overflow-y: auto; background: white; border-radius: 8px;
  box-shadow: 0 20px 50px rgba(0, 0, 0, 0.3);
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
}
.salespulse-modal-header {
  display: flex; align-items: center; justify-content: space-between;
  padding: 16px 20px; border-bottom: 1px solid #e5e7eb;
}
.salespulse-modal-title { font-size: 16px; font-weight: 600; color: #111827; margin: 0; }
.salespulse-modal-close { background: none; border: none; font-size: 20px; color: #6b7280; cursor: pointer; line-height: 1; }
.salespulse-modal-body { padding: 16px 20px; }
.salespulse-field { margin-bottom: 12px; }
.salespulse-field label { display: block; font-size: 12px; font-weight: 600; color: #374151; margin-bottom: 4px; }
.salespulse-field input, .salespulse-field select, .salespulse-field textarea {
  width: 100%; padding: 8px 10px; border: 1px solid #d1d5db; border-radius: 4px;
  font-size: 13px; color: #111827; box-sizing: border-box; font-family: inherit;
}
.salespulse-field-row { display: flex; gap: 10px; }
.salespulse-field-row .salespulse-field { flex: 1; }
.salespulse-form-error {
  display: none; margin-bottom: 12px; padding: 8px 12px;
  background: #fef2f2; border: 1px solid #fecaca; border-radius: 4px;
  color: #b91c1c; font-size: 12px;
}
.salespulse-form-error.visible { display: block; }
.salespulse-modal-footer {
  display: flex; justify-content: flex-end; gap: 8px;
  padding: 12px 20px; border-top: 1px solid #e5e7eb;
}
.salespulse-cancel-btn {
  padding: 8px 16px; background: white; color: #374151;
  border: 1px solid #d1d5db; border-radius: 4px; font-size: 13px; cursor: pointer;
}
.salespulse-submit-btn {
  padding: 8px 16px; background: linear-gradient(135deg, #6366f1 0%, #8b5cf6 100%);
  color: white; border: none; border-radius: 4px; font-size: 13px; font-weight: 600; cursor: pointer;
}
.salespulse-submit-btn:disabled { opacity: 0.7; cursor: not-allowed; }
`
