package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PushErrorBadInput      = "PUSH_BAD_INPUT"
	PushErrorConfiguration = "PUSH_CONFIGURATION_ERROR"
	PushErrorAuth          = "PUSH_AUTH_ERROR"
	PushErrorTokenExchange = "PUSH_TOKEN_EXCHANGE_ERROR"
	PushErrorProvider      = "PUSH_PROVIDER_ERROR"
	PushErrorNotConnected  = "PUSH_NOT_CONNECTED"
	PushErrorNotFound      = "PUSH_NOT_FOUND"
	PushErrorInternal      = "PUSH_INTERNAL_ERROR"
)

// NewConfigurationError marks a missing or invalid setting. These are
// fatal and raised before any network call is attempted.
func NewConfigurationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(PushErrorConfiguration)
}

func NewAuthError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(PushErrorAuth)
}

func NewTokenExchangeError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusBadGateway).
		WithTextCode(PushErrorTokenExchange)
}

// NewProviderError wraps an SP-API rejection. The upstream status code and
// response body ride along so the job row can persist the provider detail.
func NewProviderError(statusCode int, body string) *goerrors.Error {
	return goerrors.New(
		providerErrorMessage(statusCode, body),
		goerrors.CategoryOperation,
	).
		WithCode(http.StatusBadGateway).
		WithTextCode(PushErrorProvider)
}

func NewNotConnectedError(userID string) *goerrors.Error {
	message := "core: user is not connected to a seller account"
	if strings.TrimSpace(userID) != "" {
		message = "core: user " + strings.TrimSpace(userID) + " is not connected to a seller account"
	}
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusConflict).
		WithTextCode(PushErrorNotConnected)
}

func NewBadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(PushErrorBadInput)
}

func providerErrorMessage(statusCode int, body string) string {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) > 512 {
		trimmed = trimmed[:512]
	}
	if trimmed == "" {
		trimmed = "empty response body"
	}
	return "core: selling partner api rejected the request (" +
		http.StatusText(statusCode) + "): " + trimmed
}

// HasTextCode reports whether err carries the given push error text code.
func HasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), strings.TrimSpace(textCode))
}

func pushErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePushErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not connected"):
		return ensurePushErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryNotFound).
				WithTextCode(PushErrorNotConnected),
		)
	case strings.Contains(msg, "not found"):
		return ensurePushErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryNotFound).
				WithTextCode(PushErrorNotFound),
		)
	case strings.Contains(msg, "oauth state"), strings.Contains(msg, "decrypt"):
		return ensurePushErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryAuth).
				WithTextCode(PushErrorAuth),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensurePushErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(PushErrorBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePushErrorEnvelope(mapped)
}

func ensurePushErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = pushHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPushTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPushTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return PushErrorBadInput
	case goerrors.CategoryNotFound:
		return PushErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return PushErrorAuth
	case goerrors.CategoryOperation:
		return PushErrorProvider
	default:
		return PushErrorInternal
	}
}

func pushHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
