package auth

import (
	"fmt"
	"time"
)

// Message is an outbound notification.
type Message struct {
	Subject string
	HTML    string
}

// greeting expects a name already passed through SanitizeName.
func greeting(firstName string) string {
	if firstName == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", firstName)
}

// VerificationOTPMessage builds the email-verification code message.
func VerificationOTPMessage(firstName, code string, ttl time.Duration) Message {
	return Message{
		Subject: "Your email verification code",
		HTML: fmt.Sprintf(`<html><body>
		<p>%s</p>
		<h2>Verify Your Email Address</h2>
		<p>Welcome aboard! Use the code below to verify your email address.</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>This code will expire in %d minutes.</p>
	</body></html>`, greeting(firstName), code, int(ttl.Minutes())),
	}
}

// PasswordResetOTPMessage builds the password-reset code message.
func PasswordResetOTPMessage(firstName, code string, ttl time.Duration) Message {
	return Message{
		Subject: "Your password reset code",
		HTML: fmt.Sprintf(`<html><body>
		<p>%s</p>
		<h2>Reset Your Password</h2>
		<p>A password reset has been requested for your account. Use the code below to continue.</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>This code will expire in %d minutes.</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`, greeting(firstName), code, int(ttl.Minutes())),
	}
}

// PasswordChangedMessage builds the password-changed notice.
func PasswordChangedMessage(firstName string) Message {
	return Message{
		Subject: "Your password was changed",
		HTML: fmt.Sprintf(`<html><body>
		<p>%s</p>
		<h2>Password Changed</h2>
		<p>The password for your account was just changed.</p>
		<p>If you did not make this change, reset your password immediately and contact support.</p>
	</body></html>`, greeting(firstName)),
	}
}
