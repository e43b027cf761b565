package auth

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/tour-auth/pkg/domain"
)

type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestOTPService(clock *testClock) *OTPService {
	svc := NewOTPService(OTPConfig{})
	svc.now = clock.Now
	return svc
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func TestGenerateOTP_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)
	}
}

func TestOTPService_Defaults(t *testing.T) {
	svc := NewOTPService(OTPConfig{})
	assert.Equal(t, 15*time.Minute, svc.config.TTL)
	assert.Equal(t, 5, svc.config.MaxAttempts)
	assert.Equal(t, 30*time.Minute, svc.config.BlockDuration)
}

func TestOTPService_IssueStoresHashOnly(t *testing.T) {
	clock := newTestClock()
	svc := newTestOTPService(clock)
	acct := &domain.Account{ID: uuid.New(), OTPAttempts: 3}
	blocked := clock.Now().Add(time.Hour)
	acct.OTPBlockedUntil = &blocked

	code, err := svc.Issue(acct, domain.OTPPurposeEmailVerification)
	require.NoError(t, err)

	assert.Equal(t, HashOTP(code), acct.EmailVerificationOTP.Hash)
	assert.NotEqual(t, code, acct.EmailVerificationOTP.Hash)
	require.NotNil(t, acct.EmailVerificationOTP.ExpiresAt)
	assert.Equal(t, clock.Now().Add(15*time.Minute), *acct.EmailVerificationOTP.ExpiresAt)
	assert.Zero(t, acct.OTPAttempts)
	assert.Nil(t, acct.OTPBlockedUntil)
	assert.Empty(t, acct.PasswordResetOTP.Hash)
}

func TestOTPService_IssueUnknownPurpose(t *testing.T) {
	svc := NewOTPService(OTPConfig{})
	_, err := svc.Issue(&domain.Account{}, domain.OTPPurpose("sms"))
	require.Error(t, err)
}

func TestOTPService_VerifyValid(t *testing.T) {
	clock := newTestClock()
	svc := newTestOTPService(clock)
	acct := &domain.Account{}

	code, err := svc.Issue(acct, domain.OTPPurposePasswordReset)
	require.NoError(t, err)

	assert.Equal(t, OTPInvalidRetry, svc.Verify(acct, domain.OTPPurposePasswordReset, wrongCode(code)).Outcome)
	assert.Equal(t, 1, acct.OTPAttempts)

	res := svc.Verify(acct, domain.OTPPurposePasswordReset, code)
	assert.Equal(t, OTPValid, res.Outcome)
	assert.Empty(t, acct.PasswordResetOTP.Hash)
	assert.Nil(t, acct.PasswordResetOTP.ExpiresAt)
	assert.Zero(t, acct.OTPAttempts)

	// consumed
	assert.Equal(t, OTPExpired, svc.Verify(acct, domain.OTPPurposePasswordReset, code).Outcome)
}

func TestOTPService_VerifyExpired(t *testing.T) {
	clock := newTestClock()
	svc := newTestOTPService(clock)
	acct := &domain.Account{}

	code, err := svc.Issue(acct, domain.OTPPurposeEmailVerification)
	require.NoError(t, err)

	clock.Advance(15*time.Minute + time.Second)
	res := svc.Verify(acct, domain.OTPPurposeEmailVerification, code)
	assert.Equal(t, OTPExpired, res.Outcome)
	assert.Zero(t, acct.OTPAttempts)
}

func TestOTPService_VerifyWithoutPendingCode(t *testing.T) {
	svc := NewOTPService(OTPConfig{})
	res := svc.Verify(&domain.Account{}, domain.OTPPurposeEmailVerification, "123456")
	assert.Equal(t, OTPExpired, res.Outcome)
}

func TestOTPService_PurposesAreIndependent(t *testing.T) {
	clock := newTestClock()
	svc := newTestOTPService(clock)
	acct := &domain.Account{}

	verifyCode, err := svc.Issue(acct, domain.OTPPurposeEmailVerification)
	require.NoError(t, err)
	_, err = svc.Issue(acct, domain.OTPPurposePasswordReset)
	require.NoError(t, err)

	assert.Equal(t, OTPValid, svc.Verify(acct, domain.OTPPurposeEmailVerification, verifyCode).Outcome)
	assert.NotEmpty(t, acct.PasswordResetOTP.Hash)
}

func TestOTPService_BlocksAfterMaxAttempts(t *testing.T) {
	clock := newTestClock()
	svc := newTestOTPService(clock)
	acct := &domain.Account{}

	code, err := svc.Issue(acct, domain.OTPPurposeEmailVerification)
	require.NoError(t, err)
	bad := wrongCode(code)

	for i := 1; i <= 4; i++ {
		res := svc.Verify(acct, domain.OTPPurposeEmailVerification, bad)
		require.Equal(t, OTPInvalidRetry, res.Outcome, "attempt %d", i)
	}

	res := svc.Verify(acct, domain.OTPPurposeEmailVerification, bad)
	require.Equal(t, OTPInvalidBlocked, res.Outcome)
	assert.Equal(t, 30*time.Minute, res.RetryAfter)
	require.NotNil(t, acct.OTPBlockedUntil)
	assert.True(t, acct.OTPBlockedUntil.After(clock.Now()))

	// correct code is still rejected during the block
	clock.Advance(time.Minute)
	res = svc.Verify(acct, domain.OTPPurposeEmailVerification, code)
	assert.Equal(t, OTPInvalidBlocked, res.Outcome)
	assert.Equal(t, 29*time.Minute, res.RetryAfter)
	assert.NotEmpty(t, acct.EmailVerificationOTP.Hash)

	// block also covers the other purpose
	assert.Equal(t, OTPInvalidBlocked, svc.Verify(acct, domain.OTPPurposePasswordReset, code).Outcome)
}

func TestOTPService_ReissueInvalidatesPreviousCode(t *testing.T) {
	svc := NewOTPService(OTPConfig{})
	acct := &domain.Account{}

	first, err := svc.Issue(acct, domain.OTPPurposeEmailVerification)
	require.NoError(t, err)
	second, err := svc.Issue(acct, domain.OTPPurposeEmailVerification)
	require.NoError(t, err)

	if first != second {
		assert.Equal(t, OTPInvalidRetry, svc.Verify(acct, domain.OTPPurposeEmailVerification, first).Outcome)
	}
	assert.Equal(t, OTPValid, svc.Verify(acct, domain.OTPPurposeEmailVerification, second).Outcome)
}

func TestOTPService_Clear(t *testing.T) {
	svc := NewOTPService(OTPConfig{})
	acct := &domain.Account{}

	_, err := svc.Issue(acct, domain.OTPPurposePasswordReset)
	require.NoError(t, err)

	svc.Clear(acct, domain.OTPPurposePasswordReset)
	assert.Empty(t, acct.PasswordResetOTP.Hash)
	assert.Nil(t, acct.PasswordResetOTP.ExpiresAt)
}
