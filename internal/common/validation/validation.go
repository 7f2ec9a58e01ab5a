package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	MaxUsernameLength     = 32
	MinUsernameLength     = 3
	MinPasswordLength     = 8
	MaxPasswordLength     = 72 // bcrypt ignores bytes past 72
	MaxProductNameLength  = 120
	MaxDescriptionLength  = 2000
	MaxFeatureLength      = 200
	MaxFeatures           = 50
	MaxShortFieldLength   = 64
	DefaultMaxChatContent = 2000
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// RegisterGinValidators adds the custom tags used by request structs to gin's validator.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		return fmt.Errorf("register notblank: %w", err)
	}
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	}); err != nil {
		return fmt.Errorf("register username: %w", err)
	}
	return nil
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if n := utf8.RuneCountInString(username); n < MinUsernameLength {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLength)
	} else if n > MaxUsernameLength {
		return fmt.Errorf("username cannot exceed %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, numbers, dots, dashes and underscores")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password cannot exceed %d bytes", MaxPasswordLength)
	}
	return nil
}

// ValidateChatContent rejects blank content and content longer than maxRunes.
func ValidateChatContent(content string, maxRunes int) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if maxRunes <= 0 {
		maxRunes = DefaultMaxChatContent
	}
	if utf8.RuneCountInString(content) > maxRunes {
		return fmt.Errorf("content cannot exceed %d characters", maxRunes)
	}
	return nil
}

func ValidateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxProductNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxProductNameLength)
	}
	return nil
}

func ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("description cannot be empty")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return nil
}

// MaxPrice is the largest value the numeric(12,2) price column holds.
const MaxPrice = 9999999999.99

func ValidatePrice(price float64) error {
	switch {
	case math.IsNaN(price) || math.IsInf(price, 0):
		return fmt.Errorf("price must be a finite number")
	case price < 0:
		return fmt.Errorf("price cannot be negative")
	case price > MaxPrice:
		return fmt.Errorf("price cannot exceed %.2f", MaxPrice)
	}
	// Shortest round-trip form, so 9.99 stays "9.99" and 9.999 keeps three digits.
	text := strconv.FormatFloat(price, 'f', -1, 64)
	if dot := strings.IndexByte(text, '.'); dot >= 0 && len(text)-dot-1 > 2 {
		return fmt.Errorf("price cannot have more than 2 decimal places")
	}
	return nil
}

// ValidateOptionalURL accepts an empty string, or an absolute http(s) URL or a rooted path.
func ValidateOptionalURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "/") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL or an absolute path", field)
	}
	return nil
}

func ValidateShortField(field, value string) error {
	if utf8.RuneCountInString(value) > MaxShortFieldLength {
		return fmt.Errorf("%s cannot exceed %d characters", field, MaxShortFieldLength)
	}
	return nil
}

func ValidateFeatures(features []string) error {
	if len(features) > MaxFeatures {
		return fmt.Errorf("features cannot contain more than %d entries", MaxFeatures)
	}
	for i, f := range features {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("feature %d cannot be empty", i)
		}
		if utf8.RuneCountInString(f) > MaxFeatureLength {
			return fmt.Errorf("feature %d cannot exceed %d characters", i, MaxFeatureLength)
		}
	}
	return nil
}
