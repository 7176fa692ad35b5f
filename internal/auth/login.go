// Package auth handles authentication against the municipal complaint
// portal.
//
// This package provides:
//   - Login automation with arithmetic captcha solving
//   - Session expiry detection on the current page
//   - Retry logic with a browser restart as last resort
package auth

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"civicmon/internal/browser"
	"civicmon/internal/errors"
)

// Form lists the CSS selectors of the portal login page.
type Form struct {
	Username string
	Password string
	Captcha  string
	// CaptchaText holds the challenge, e.g. "7 + 5"; empty when the portal
	// has no captcha.
	CaptchaText string
	Submit      string
}

// DefaultForm matches the stock portal login page.
var DefaultForm = Form{
	Username:    "#email_or_username",
	Password:    "#password",
	Captcha:     "#captcha",
	CaptchaText: "li.captchaList span",
	Submit:      "button[type=submit]",
}

// Credentials identify the portal account.
type Credentials struct {
	LoginURL string
	Username string
	Password string
}

// Login performs automated login to the portal.
//
// Login flow:
//  1. Navigate to login page
//  2. Wait for page to load completely
//  3. Extract and solve the arithmetic captcha
//  4. Fill in username, password, and captcha answer
//  5. Submit form and wait until the login form is gone
//
// Returns:
//   - error: LoginFailedError if login fails, nil on success
func Login(ctx context.Context, creds Credentials, form Form) error {
	log.Println("  → Navigating to login page...")

	err := chromedp.Run(ctx,
		chromedp.Navigate(creds.LoginURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	)
	if err != nil {
		log.Println("  ✗ Failed to load login page:", err)
		return errors.NewLoginFailedError("failed to load login page", err)
	}
	log.Println("  ✓ Login page loaded")

	actions := []chromedp.Action{
		chromedp.SendKeys(form.Username, creds.Username),
		chromedp.SendKeys(form.Password, creds.Password),
	}

	if form.CaptchaText != "" {
		var captchaText string
		if err := chromedp.Run(ctx, chromedp.Text(form.CaptchaText, &captchaText, chromedp.NodeVisible)); err != nil {
			return errors.NewLoginFailedError("captcha not found", err)
		}

		log.Println("  → Solving captcha...")
		answer, err := SolveCaptcha(captchaText)
		if err != nil {
			log.Println("  ✗ Captcha error:", err)
			return errors.NewLoginFailedError("captcha solution failed", err)
		}
		log.Printf("  ✓ Captcha solved: %s = %s", captchaText, answer)
		actions = append(actions, chromedp.SendKeys(form.Captcha, answer))
	}

	log.Println("  → Submitting login credentials...")
	actions = append(actions,
		chromedp.Click(form.Submit, chromedp.NodeVisible),
		chromedp.Sleep(3*time.Second),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		log.Println("  ✗ Failed to submit login form:", err)
		return errors.NewLoginFailedError("failed to submit login form", err)
	}

	if IsSessionExpired(ctx, form) {
		return errors.NewLoginFailedError("credentials rejected", nil)
	}

	log.Println("  ✓ Login successful")
	return nil
}

// LoginWithRetry retries Login up to attempts times, sleeping delay between
// attempts. The browser is restarted before the final attempt.
func LoginWithRetry(ctx context.Context, holder *browser.ContextHolder, creds Credentials, form Form, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		log.Printf("🔐 Login attempt %d/%d...", attempt, attempts)
		bctx := holder.Get()
		if attempt == attempts && attempt > 1 {
			bctx = holder.Restart()
		}

		lastErr = Login(bctx, creds, form)
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}

// IsSessionExpired reports whether the current page shows the login form.
//
// Checking for the login form is more reliable than checking for missing
// dashboard elements, which can give false positives during transitions.
func IsSessionExpired(ctx context.Context, form Form) bool {
	var loginFormExists bool
	err := chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%q) !== null`, form.Username), &loginFormExists),
	)
	return err == nil && loginFormExists
}

// SolveCaptcha solves the portal's arithmetic captcha.
//
// Captcha format:
//   - Input: "5 + 3", "12 - 4" or "3 x 4" (two integers and an operator)
//   - Output: the result as a decimal string
func SolveCaptcha(text string) (string, error) {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid captcha format: %q (expected format: 'X + Y')", text)
	}

	a, err1 := strconv.Atoi(parts[0])
	b, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return "", fmt.Errorf("failed to parse captcha numbers: %q", text)
	}

	switch parts[1] {
	case "+":
		return strconv.Itoa(a + b), nil
	case "-":
		return strconv.Itoa(a - b), nil
	case "x", "X", "*", "×":
		return strconv.Itoa(a * b), nil
	default:
		return "", fmt.Errorf("unsupported captcha operator %q", parts[1])
	}
}
