package audit

import "strings"

// Category routes an audit entry to its log.
type Category string

const (
	CategoryAttempt      Category = "ATTEMPT"
	CategoryLoginSuccess Category = "LOGINSUCCESS"
	CategoryRegistered   Category = "REGISTERED"
	CategoryLogout       Category = "LOGOUT"
	CategoryTCreation    Category = "TCREATION"
	CategoryTUpdate      Category = "TUPDATE"
	CategoryTDelete      Category = "TDELETE"
	CategoryTClose       Category = "TCLOSE"
	CategoryAccessDenied Category = "ACCESSDENIED"
)

const generalLog = "general_audit.log"

var categoryFiles = map[Category]string{
	CategoryAttempt:      "login_attempts.log",
	CategoryLoginSuccess: "successful_logins.log",
	CategoryRegistered:   "account_registered.log",
	CategoryLogout:       "account_logout.log",
	CategoryTCreation:    "ticket_creations.log",
	CategoryTUpdate:      "ticket_updates.log",
	CategoryTDelete:      "ticket_deletions.log",
	CategoryTClose:       "ticket_close.log",
}

// FileName returns the log base name for c. Categories without a dedicated
// log, ACCESSDENIED included, share the general log.
func FileName(c Category) string {
	if name, ok := categoryFiles[Category(strings.ToUpper(string(c)))]; ok {
		return name
	}
	return generalLog
}
