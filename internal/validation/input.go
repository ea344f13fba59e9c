package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinListingTitleLength       = 3
	MaxListingTitleLength       = 120
	MaxListingDescriptionLength = 5000
	MaxCategoryLength           = 50
	MinTrackingNumberLength     = 4
	MaxTrackingNumberLength     = 64
	MaxBuyerNotesLength         = 500
	MaxAffiliateCodeLength      = 64
	MaxPrice                    = 10_000_000
)

var (
	trackingNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]*[A-Za-z0-9]$`)
	affiliateCodeRegex  = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// NormalizeTrackingNumber убирает пробелы по краям и проверяет формат трек-номера.
func NormalizeTrackingNumber(tracking string) (string, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return "", fmt.Errorf("трек-номер обязателен")
	}
	if err := ValidateLength("трек-номер", tracking, MinTrackingNumberLength, MaxTrackingNumberLength); err != nil {
		return "", err
	}
	if !trackingNumberRegex.MatchString(tracking) {
		return "", fmt.Errorf("трек-номер может содержать только латинские буквы, цифры, пробел и дефис")
	}
	return tracking, nil
}

// ValidateListingTitle проверяет заголовок объявления.
func ValidateListingTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок объявления обязателен")
	}
	return ValidateLength("заголовок объявления", title, MinListingTitleLength, MaxListingTitleLength)
}

// ValidateListingDescription проверяет описание объявления. Пустое описание допустимо.
func ValidateListingDescription(description string) error {
	return ValidateLength("описание объявления", strings.TrimSpace(description), 0, MaxListingDescriptionLength)
}

// ValidatePrice проверяет цену в EcoCoins.
func ValidatePrice(price int64) error {
	if price <= 0 {
		return fmt.Errorf("цена должна быть больше нуля")
	}
	if price > MaxPrice {
		return fmt.Errorf("цена не может превышать %d EcoCoins", MaxPrice)
	}
	return nil
}

// ValidateAffiliateCode проверяет формат реферального кода.
func ValidateAffiliateCode(code string) error {
	if code == "" {
		return nil
	}
	if len(code) > MaxAffiliateCodeLength || !affiliateCodeRegex.MatchString(code) {
		return fmt.Errorf("некорректный реферальный код")
	}
	return nil
}
