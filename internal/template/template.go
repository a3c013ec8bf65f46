// Package template renders the transactional emails sent by the service.
package template

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"
)

var (
	//go:embed reset_password_otp.html
	resetOTPHTML string
	//go:embed reset_password_otp.css
	resetOTPCSS string

	resetOTPTmpl = template.Must(template.New("reset_password_otp").Parse(resetOTPHTML))
)

// ResetOTPData is the input for ResetPasswordOTP. A zero Year means the
// current year.
type ResetOTPData struct {
	ServerName string
	UserName   string
	OTP        string
	Expiry     time.Duration
	Year       int
}

// ResetPasswordOTP renders the password reset email as a standalone HTML
// document with the stylesheet inlined.
func ResetPasswordOTP(data ResetOTPData) (string, error) {
	year := data.Year
	if year == 0 {
		year = time.Now().Year()
	}

	var buf bytes.Buffer
	err := resetOTPTmpl.Execute(&buf, struct {
		ServerName string
		UserName   string
		Digits     []string
		Expiry     string
		Year       int
		CSS        template.CSS
	}{
		ServerName: data.ServerName,
		UserName:   data.UserName,
		Digits:     strings.Split(data.OTP, ""),
		Expiry:     HumanDuration(data.Expiry),
		Year:       year,
		CSS:        template.CSS(resetOTPCSS),
	})
	if err != nil {
		return "", fmt.Errorf("render reset otp email: %w", err)
	}
	return buf.String(), nil
}

// HumanDuration formats d in its largest whole unit, e.g. "5 minutes",
// "1 hour" or "90 seconds" rounded to "2 minutes".
func HumanDuration(d time.Duration) string {
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
		{time.Second, "second"},
	}

	abs := d.Abs()
	for _, u := range units {
		if abs >= u.size {
			return plural(d, u.size, u.name)
		}
	}
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

func plural(d, unit time.Duration, name string) string {
	n := math.Round(float64(d) / float64(unit))
	if d.Abs() >= unit*3/2 {
		name += "s"
	}
	return fmt.Sprintf("%d %s", int64(n), name)
}
