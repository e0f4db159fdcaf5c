package privacy

import (
	"strings"

	"wagateway/internal/constants"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits.
// Example: "628123456789" -> "********6789"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	keep := constants.DefaultPhoneMaskLength
	if strings.HasPrefix(phone, "+") {
		if len(phone) <= keep+1 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-1-keep) + phone[len(phone)-keep:]
	}

	if len(phone) <= keep {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-keep) + phone[len(phone)-keep:]
}

// MaskRecipient masks a recipient JID while keeping the domain part.
// Example: "628123456789@s.whatsapp.net" -> "********6789@s.whatsapp.net"
func MaskRecipient(jid string) string {
	if jid == "" {
		return ""
	}

	if at := strings.Index(jid, "@"); at >= 0 {
		return MaskPhoneNumber(jid[:at]) + jid[at:]
	}
	return MaskPhoneNumber(jid)
}

// MaskMessageID masks a message id keeping a short suffix for correlation
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	keep := constants.DefaultMessageIDLength
	if len(messageID) <= keep {
		return strings.Repeat("*", len(messageID))
	}
	return strings.Repeat("*", len(messageID)-keep) + messageID[len(messageID)-keep:]
}
