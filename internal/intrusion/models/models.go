package models

import (
	"strings"
	"time"
)

// Category names an attack class. It is also the violation counter prefix.
type Category string

const (
	CategorySQLInjection     Category = "sql_injection"
	CategoryXSS              Category = "xss"
	CategoryPathTraversal    Category = "path_traversal"
	CategoryCommandInjection Category = "command_injection"
	CategoryAuthFailure      Category = "auth_failure"
	CategoryScanner          Category = "scanner"
	CategoryHoneypot         Category = "honeypot"
	CategoryManual           Category = "manual"
)

// TrackedCategories have violation counters. Unblocking clears all of them.
var TrackedCategories = []Category{
	CategorySQLInjection,
	CategoryXSS,
	CategoryPathTraversal,
	CategoryCommandInjection,
	CategoryAuthFailure,
	CategoryScanner,
}

// ParseCategory normalizes a category read from configuration or rules.
func ParseCategory(s string) Category {
	return Category(strings.ToLower(strings.TrimSpace(s)))
}

// Store keys.
const (
	BlockPrefix   = "blocked:"
	BlockIndexKey = "blocked:index"
)

// BlockKey is the block record key for ip.
func BlockKey(ip string) string {
	return BlockPrefix + ip
}

// ViolationKey is the per-category violation counter for ip.
func ViolationKey(c Category, ip string) string {
	return string(c) + ":" + ip
}

// Trigger says which escalation path created a block.
type Trigger string

const (
	TriggerThreshold Trigger = "threshold"
	TriggerHoneypot  Trigger = "honeypot"
	TriggerManual    Trigger = "manual"
)

// BlockRecord is stored at blocked:{ip} for the block duration.
type BlockRecord struct {
	IP        string    `json:"ip"`
	Category  Category  `json:"category"`
	Trigger   Trigger   `json:"trigger"`
	Reason    string    `json:"reason,omitempty"`
	BlockedAt time.Time `json:"blocked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Location says which request surface matched.
type Location string

const (
	LocationPath      Location = "path"
	LocationQuery     Location = "query"
	LocationParam     Location = "param"
	LocationBody      Location = "body"
	LocationUserAgent Location = "user_agent"
)

// Match is a detected signature.
type Match struct {
	Category  Category
	Signature string
	Location  Location
}
