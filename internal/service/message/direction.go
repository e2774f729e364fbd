package message

import (
	"strings"

	"meta-relay/internal/models"
)

// ClassifyDirection marks a message OUTBOUND when the business itself sent it.
// Providers echo business sends through the inbound webhook; this is how those
// echoes are told apart from contact messages.
func ClassifyDirection(senderID, businessID string) models.MessageDirection {
	if sameAccount(senderID, businessID) {
		return models.MessageDirectionOutbound
	}
	return models.MessageDirectionInbound
}

// sameAccount compares two account ids ignoring phone number formatting, so
// "+1 555-999-9" and "15559999" name the same WhatsApp number.
func sameAccount(a, b string) bool {
	a, b = normalizeAccountID(a), normalizeAccountID(b)
	return a != "" && a == b
}

func normalizeAccountID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '+', '-', '(', ')', '.':
			return -1
		}
		return r
	}, id)
}
