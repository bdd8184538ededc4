// Package i18n resolves the request locale and translates response messages.
package i18n

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"
)

const localeKey = "locale"

// DefaultLocale is used when nothing else is configured.
const DefaultLocale = "en"

var supported = []language.Tag{language.English, language.Russian}

var matcher = language.NewMatcher(supported)

var messages = map[string]map[string]string{
	"en": {
		"auth.invalid_credentials": "Invalid credentials.",
		"auth.logged_out":          "Logged out.",
		"auth.email_taken":         "The email has already been taken.",
		"auth.unauthenticated":     "Unauthenticated.",
		"tickets.created":          "Ticket created successfully.",
		"tickets.updated":          "Ticket updated successfully.",
		"tickets.not_found":        "Ticket not found.",
		"tickets.invalid_status":   "The selected status is invalid.",
		"validation.failed":        "The given data was invalid.",
		"health.ok":                "ok",
	},
	"ru": {
		"auth.invalid_credentials": "Неверные учетные данные.",
		"auth.logged_out":          "Вы вышли из системы.",
		"auth.email_taken":         "Этот email уже зарегистрирован.",
		"auth.unauthenticated":     "Требуется аутентификация.",
		"tickets.created":          "Тикет успешно создан.",
		"tickets.updated":          "Тикет успешно обновлен.",
		"tickets.not_found":        "Тикет не найден.",
		"tickets.invalid_status":   "Выбран недопустимый статус.",
		"validation.failed":        "Переданные данные некорректны.",
		"health.ok":                "ok",
	},
}

// Supported reports whether locale has a message table.
func Supported(locale string) bool {
	_, ok := messages[locale]
	return ok
}

// Match picks the best supported locale for an Accept-Language header,
// returning fallback when nothing matches.
func Match(acceptLanguage, fallback string) string {
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if !Supported(fallback) {
		fallback = DefaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T translates key into locale. Unknown locales use English; unknown keys
// return the key itself.
func T(locale, key string) string {
	if msg, ok := messages[locale][key]; ok {
		return msg
	}
	if msg, ok := messages[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Middleware stores the negotiated locale on the request.
func Middleware(fallback string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		locale := Match(c.Get(fiber.HeaderAcceptLanguage), fallback)
		c.Locals(localeKey, locale)
		c.Set(fiber.HeaderContentLanguage, locale)
		return c.Next()
	}
}

// Locale returns the request locale set by Middleware.
func Locale(c *fiber.Ctx) string {
	if locale, ok := c.Locals(localeKey).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// Message translates key using the request locale.
func Message(c *fiber.Ctx, key string) string {
	return T(Locale(c), key)
}
