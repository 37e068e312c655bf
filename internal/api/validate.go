package api

import (
	"regexp"
	"unicode/utf8"

	"github.com/textback/textback/internal/database/models"
)

// maxNameLen is the maximum length for name and category fields.
const maxNameLen = 200

// maxEmailLen is the maximum length for email addresses (RFC 5321).
const maxEmailLen = 254

// maxURLLen is the maximum length for link fields.
const maxURLLen = 2048

// maxFAQLen is the maximum length for the freeform FAQ text.
const maxFAQLen = 8 * 1024

// e164Re validates E.164 phone numbers: + followed by 8-15 digits.
var e164Re = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// emailRe is a basic email format regex. Not exhaustive; validates structure only.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// validateTenantRequest checks a create/update body. Returns an error
// message if invalid, empty string if OK.
func validateTenantRequest(req tenantRequest) string {
	switch req.Kind {
	case models.KindBusiness, models.KindLocation:
	default:
		return "kind must be business or location"
	}
	if req.Kind == models.KindLocation && req.ParentID == nil {
		return "parent_id is required for locations"
	}
	if req.Kind == models.KindBusiness && req.ParentID != nil {
		return "parent_id is only valid for locations"
	}

	if req.Name == "" {
		return "name is required"
	}
	if utf8.RuneCountInString(req.Name) > maxNameLen {
		return "name exceeds maximum length"
	}
	if utf8.RuneCountInString(req.Category) > maxNameLen {
		return "category exceeds maximum length"
	}

	if msg := validateNumber("number", req.Number, true); msg != "" {
		return msg
	}
	if msg := validateNumber("forwarding_number", req.ForwardingNumber, false); msg != "" {
		return msg
	}

	switch req.Tier {
	case "", models.TierBasic, models.TierPro, models.TierMulti:
	default:
		return "tier must be basic, pro, or multi"
	}

	if msg := validateLink("ordering_link", req.OrderingLink); msg != "" {
		return msg
	}
	if msg := validateLink("quote_link", req.QuoteLink); msg != "" {
		return msg
	}
	if utf8.RuneCountInString(req.FAQ) > maxFAQLen {
		return "faq exceeds maximum length"
	}

	if req.OwnerEmail != "" {
		if len(req.OwnerEmail) > maxEmailLen {
			return "owner_email exceeds maximum length"
		}
		if !emailRe.MatchString(req.OwnerEmail) {
			return "owner_email is not a valid email address"
		}
	}

	switch req.OwnerPushOS {
	case "", "fcm", "apns":
	default:
		return "owner_push_os must be fcm or apns"
	}

	return ""
}

// validateNumber checks an E.164 phone number field.
func validateNumber(field, value string, required bool) string {
	if value == "" {
		if required {
			return field + " is required"
		}
		return ""
	}
	if !e164Re.MatchString(value) {
		return field + " must be an E.164 number like +15551234567"
	}
	return ""
}

// validateLink checks a link field length. Scheme validation is left to the
// operator; links are relayed verbatim in replies.
func validateLink(field, value string) string {
	if len(value) > maxURLLen {
		return field + " exceeds maximum length"
	}
	return ""
}
