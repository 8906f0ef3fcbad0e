package main

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// loginState is the terminal result of the authentication controller.
type loginState int

const (
	loginUnknown loginState = iota
	loginConfirmed
	loginUncertain
	loginSkipped
)

func (s loginState) String() string {
	switch s {
	case loginConfirmed:
		return "logged in"
	case loginUncertain:
		return "uncertain"
	case loginSkipped:
		return "skipped by operator"
	default:
		return "unknown"
	}
}

// checkLoggedIn probes an ordered list of independent logged-in indicators.
// It is a first-match-wins OR: any indicator confirms the session, and the
// short per-probe waits bound the total cost when none match.
func (s *session) checkLoggedIn(spec retailerSpec) bool {
	return matchAnyProbe(s.dom(), spec.LoggedIn)
}

// ensureAuthenticated drives the login state machine for one retailer
// session: probe current state, fill and submit the login form when needed,
// hand off to the manual gate for challenges, and re-probe for confirmation.
// An unconfirmed result is reported as uncertain and the run continues
// optimistically; only the operator explicitly skipping aborts the retailer.
func (s *session) ensureAuthenticated(spec retailerSpec, creds *RetailerCredentials, gate manualGate) loginState {
	fmt.Printf("🔑 Checking %s login state...\n", spec.DisplayName)

	if err := s.navigate(spec.OrdersURL); err != nil {
		s.log.Debugw("orders page probe navigation failed", "error", err)
	}
	if s.checkLoggedIn(spec) {
		fmt.Println("✓ Already logged in from saved session")
		return loginConfirmed
	}

	if err := s.navigate(spec.LoginURL); err != nil {
		s.log.Warnw("login page did not load", "retailer", spec.ID, "error", err)
	}

	if s.cfg.PureManual {
		if !gate.Await(fmt.Sprintf("👤 Fully-manual mode: please log in to %s in the browser window.", spec.DisplayName)) {
			return loginSkipped
		}
		return s.confirmLogin(spec)
	}

	if err := s.fillLoginForm(spec, creds, gate); err != nil {
		if err == errOperatorSkipped {
			return loginSkipped
		}
		// Best-effort: log and proceed, the form may have been absent
		// because the saved session is actually valid.
		s.log.Warnw("login form handling failed", "retailer", spec.ID, "error", err)
	}

	if s.challengePresented(spec) {
		fmt.Println("🤖 Verification challenge detected")
		if !gate.Await(fmt.Sprintf("Please solve the %s verification challenge in the browser.", spec.DisplayName)) {
			return loginSkipped
		}
	}

	return s.confirmLogin(spec)
}

var errOperatorSkipped = fmt.Errorf("operator chose to skip")

// fillLoginForm locates the credential form and submits it with humanized
// keystrokes. Two-step flows (username page, then password page) are handled
// by the optional continue control.
func (s *session) fillLoginForm(spec retailerSpec, creds *RetailerCredentials, gate manualGate) error {
	userEl := s.firstElement(spec.LoginForm.UserSelectors)
	if userEl == nil {
		if s.cfg.ManualMode {
			if !gate.Await(fmt.Sprintf("⚠️  Could not find the %s login form. Log in manually if needed.", spec.DisplayName)) {
				return errOperatorSkipped
			}
			return nil
		}
		return fmt.Errorf("login form not found within %s", s.timeout)
	}

	fmt.Println("✍️  Filling login form...")
	if err := s.typeLikeHuman(userEl, creds.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}

	if len(spec.LoginForm.ContinueSelectors) > 0 {
		if el := s.firstElement(spec.LoginForm.ContinueSelectors); el != nil {
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return fmt.Errorf("failed to advance past username step: %w", err)
			}
			if err := s.page.Timeout(s.timeout).WaitLoad(); err != nil {
				s.log.Debugw("post-continue load wait ended", "error", err)
			}
		}
	}

	passEl := s.firstElement(spec.LoginForm.PassSelectors)
	if passEl == nil {
		return fmt.Errorf("password field not found")
	}
	if err := s.typeLikeHuman(passEl, creds.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	submitEl := s.firstElement(spec.LoginForm.SubmitSelectors)
	if submitEl == nil {
		return fmt.Errorf("submit control not found")
	}
	if err := submitEl.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	if err := s.page.Timeout(s.timeout).WaitLoad(); err != nil {
		s.log.Debugw("post-submit load wait ended", "error", err)
	}
	return nil
}

// challengePresented waits briefly for recognizable CAPTCHA/verification
// page conditions after a login submission.
func (s *session) challengePresented(spec retailerSpec) bool {
	return matchAnyProbe(s.dom(), spec.Challenge)
}

// confirmLogin re-probes the logged-in indicators. Unconfirmed is not
// failure: portals frequently hide every indicator behind lazy rendering,
// and aborting here would lose runs that were actually fine.
func (s *session) confirmLogin(spec retailerSpec) loginState {
	if s.checkLoggedIn(spec) {
		fmt.Println("✓ Login confirmed")
		return loginConfirmed
	}
	fmt.Println("⚠️  Could not confirm login state, continuing optimistically")
	s.log.Warnw("login uncertain", "retailer", spec.ID)
	return loginUncertain
}

// firstElement walks a selector ladder with a short bounded wait per
// candidate and returns the first hit.
func (s *session) firstElement(selectors []string) *rod.Element {
	for _, sel := range selectors {
		el, err := s.page.Timeout(3 * time.Second).Element(sel)
		if err == nil && el != nil {
			return el
		}
	}
	return nil
}

// typeLikeHuman fills a field one character at a time with small randomized
// delays between keystrokes, which trips fewer automation fingerprints than
// setting the value wholesale.
func (s *session) typeLikeHuman(el *rod.Element, text string) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	min, max := s.cfg.MinTypeDelayMs, s.cfg.MaxTypeDelayMs
	if max <= min {
		max = min + 1
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return err
		}
		delay := min + s.rand.Intn(max-min)
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
	return nil
}
