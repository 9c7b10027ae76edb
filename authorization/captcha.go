package authorization

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
)

const defaultCaptchaTTL = 2 * time.Minute

// CaptchaChallenge is one issued captcha image, delivered to the client as a
// data URI alongside the id to echo back on registration.
type CaptchaChallenge struct {
	ID          string
	ImageBase64 string
	ExpiresAt   time.Time
}

// CaptchaStore issues and verifies registration captchas. Challenges are
// single use and expire after the ttl window.
type CaptchaStore struct {
	captcha  *base64Captcha.Captcha
	ttl      time.Duration
	disabled bool
}

// NewCaptchaStoreFromEnv builds the captcha store. AUTH_CAPTCHA_DISABLED=true
// turns verification into a no-op for local development.
func NewCaptchaStoreFromEnv() *CaptchaStore {
	disabled, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("AUTH_CAPTCHA_DISABLED")))
	return NewCaptchaStore(defaultCaptchaTTL, disabled)
}

// NewCaptchaStore creates a digit-captcha store with the given ttl.
func NewCaptchaStore(ttl time.Duration, disabled bool) *CaptchaStore {
	if ttl <= 0 {
		ttl = defaultCaptchaTTL
	}
	driver := base64Captcha.NewDriverDigit(60, 160, 5, 0.7, 80)
	memory := base64Captcha.NewMemoryStore(2048, ttl)
	return &CaptchaStore{
		captcha:  base64Captcha.NewCaptcha(driver, memory),
		ttl:      ttl,
		disabled: disabled,
	}
}

// Issue generates a fresh challenge. Returns the zero value when generation
// fails or the store is disabled.
func (s *CaptchaStore) Issue() CaptchaChallenge {
	if s == nil || s.disabled {
		return CaptchaChallenge{}
	}

	id, image, _, err := s.captcha.Generate()
	if err != nil {
		return CaptchaChallenge{}
	}

	image = strings.TrimSpace(image)
	if image != "" && !strings.HasPrefix(image, "data:") {
		image = "data:image/png;base64," + image
	}

	return CaptchaChallenge{ID: id, ImageBase64: image, ExpiresAt: time.Now().Add(s.ttl)}
}

// Verify checks the answer against the stored challenge and consumes it,
// pass or fail. Always true when the store is disabled.
func (s *CaptchaStore) Verify(id, answer string) bool {
	if s == nil || s.disabled {
		return true
	}

	id = strings.TrimSpace(id)
	answer = strings.TrimSpace(answer)
	if id == "" || answer == "" {
		return false
	}
	return s.captcha.Verify(id, answer, true)
}
