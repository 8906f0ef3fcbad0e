package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// orderContext carries everything the download handler needs for one order.
// It is built once per order and passed explicitly, so no mutable "current
// order" state leaks between the enumeration loop and download callbacks.
type orderContext struct {
	Retailer    string
	OrderNumber string
	Purchased   time.Time
	DateKnown   bool
	TargetDir   string
	FilePrefix  string
}

func (o orderContext) prefix() string {
	return o.FilePrefix + o.OrderNumber + "_"
}

// acquirer extracts and archives the invoice for each enumerated order of
// one (company, retailer) run.
type acquirer struct {
	sess    *session
	spec    retailerSpec
	cfg     *Config
	company CompanyConfig
	index   *archiveIndex
	stats   *retailerStats
	log     *zap.SugaredLogger
}

// processOrder navigates to one order's detail view, extracts its identity,
// applies the dedup policy, and materializes the invoice. It returns
// errAlreadyArchived to trigger the enumeration short-circuit.
func (a *acquirer) processOrder(detailURL string) error {
	a.sess.pacingDelay()

	if err := a.sess.navigate(detailURL); err != nil {
		return err
	}
	d := a.sess.dom()

	orderNumber, ok := extractFirstProbe(d, a.spec.OrderNumberProbes)
	if !ok || orderNumber == "" {
		orderNumber = unknownOrderNumber
	}

	purchased, dateKnown := extractPurchaseDate(d, a.spec.DateProbes)
	if !dateKnown {
		// Archive under the unknown-date sibling; the record keeps the
		// current date only for narration.
		purchased = time.Now()
	}

	octx := orderContext{
		Retailer:    a.spec.ID,
		OrderNumber: orderNumber,
		Purchased:   purchased,
		DateKnown:   dateKnown,
		TargetDir:   archiveDir(a.cfg.BaseDownloadPath, a.company.Name, a.spec.ID, purchased, dateKnown),
		FilePrefix:  a.spec.FilePrefix,
	}

	dateLabel := "unknown date"
	if dateKnown {
		dateLabel = purchased.Format("Jan 2, 2006")
	}
	fmt.Printf("📦 Order %s (%s)\n", orderNumber, dateLabel)
	a.stats.OrdersSeen++

	if a.index.Contains(octx.TargetDir, orderNumber) {
		if a.cfg.FullRescan {
			fmt.Println("   ↷ Already archived, skipping (full rescan)")
			a.stats.Skipped++
			return nil
		}
		fmt.Println("   ✓ Already archived by a previous run; assuming all older orders are present")
		return errAlreadyArchived
	}

	path, err := a.obtainInvoice(octx)
	if err != nil {
		return &downloadError{orderNumber: orderNumber, err: err}
	}

	v := verifyInvoice(path)
	switch {
	case !v.OK:
		// A broken file must not survive, or the dedup scan would treat
		// this order as archived on the next run.
		_ = os.Remove(path)
		return &downloadError{orderNumber: orderNumber,
			err: fmt.Errorf("saved file failed verification: %s", v.Warning)}
	case v.Warning != "":
		fmt.Printf("   ⚠️  %s\n", v.Warning)
		a.stats.Warnings++
	default:
		a.log.Debugw("invoice verified", "order", orderNumber, "bytes", v.Size, "pages", v.Pages)
	}

	a.index.Invalidate(octx.TargetDir)
	a.stats.Saved++
	fmt.Printf("   💾 Saved %s\n", path)
	return nil
}

// obtainInvoice runs the download strategy chain: a labeled invoice control
// first, then synthesizing the document by rendering the detail page.
func (a *acquirer) obtainInvoice(octx orderContext) (string, error) {
	if path, err := a.downloadViaControl(octx); err == nil && path != "" {
		return path, nil
	} else if err != nil {
		a.log.Debugw("invoice control strategy failed", "order", octx.OrderNumber, "error", err)
	}

	fmt.Println("   🖨  No downloadable invoice control, rendering order page")
	return a.renderPageToPDF(octx)
}

// downloadViaControl clicks the first invoice/receipt-labeled control found
// by the selector ladder and captures the resulting download. An intercepted
// click is retried once at the DOM level, and a secondary save/confirm
// dialog is clicked through when one appears. Returns "" with nil error when
// no control exists.
func (a *acquirer) downloadViaControl(octx orderContext) (string, error) {
	el := a.sess.firstElement(a.spec.InvoiceSelectors)
	if el == nil {
		return "", nil
	}

	wait := a.sess.browser.WaitDownload(a.sess.downloadDir)

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		a.log.Debugw("invoice control click intercepted, retrying via DOM", "error", err)
		if _, evalErr := el.Eval(`() => this.click()`); evalErr != nil {
			return "", fmt.Errorf("invoice control could not be clicked: %w", err)
		}
	}

	// Some flows interpose a save/print confirmation dialog.
	if dlg := a.sess.firstElement(a.spec.SaveDialogSelectors); dlg != nil {
		if err := dlg.Click(proto.InputMouseButtonLeft, 1); err != nil {
			a.log.Debugw("save dialog click failed", "error", err)
		}
	}

	info := waitDownloadWithTimeout(wait, a.sess.timeout)
	if info == nil {
		return "", nil
	}

	staged := filepath.Join(a.sess.downloadDir, info.GUID)
	return saveDownload(staged, octx.TargetDir, octx.prefix(), info.SuggestedFilename)
}

// waitDownloadWithTimeout bounds rod's blocking download wait: a clicked
// control that never produces a download must not hang the run.
func waitDownloadWithTimeout(wait func() *proto.PageDownloadWillBegin, timeout time.Duration) *proto.PageDownloadWillBegin {
	ch := make(chan *proto.PageDownloadWillBegin, 1)
	go func() { ch <- wait() }()
	select {
	case info := <-ch:
		return info
	case <-time.After(timeout):
		return nil
	}
}

// renderPageToPDF synthesizes the invoice from the order detail view: fixed
// Letter paper, printable backgrounds, half-inch margins, and a slight
// scale-down so nothing clips at the right edge.
func (a *acquirer) renderPageToPDF(octx orderContext) (string, error) {
	scale := 0.9
	paperWidth := 8.5
	paperHeight := 11.0
	margin := 0.5

	stream, err := a.sess.page.Timeout(a.sess.timeout).PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		Scale:           &scale,
		PaperWidth:      &paperWidth,
		PaperHeight:     &paperHeight,
		MarginTop:       &margin,
		MarginBottom:    &margin,
		MarginLeft:      &margin,
		MarginRight:     &margin,
	})
	if err != nil {
		return "", fmt.Errorf("page render failed: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("failed to read rendered document: %w", err)
	}

	if err := os.MkdirAll(octx.TargetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create target directory: %w", err)
	}
	name := octx.prefix() + time.Now().Format("20060102_150405") + ".pdf"
	path := uniquePath(octx.TargetDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write rendered document: %w", err)
	}
	return path, nil
}
