// Package kafka holds the pieces shared by the audit event producer and the
// CLI's event tail consumer.
package kafka

import (
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ParseAcks maps the configured acknowledgement level. Anything other than
// "0" or "1" waits for all in-sync replicas.
func ParseAcks(acks string) kgo.Acks {
	switch acks {
	case "0":
		return kgo.NoAck()
	case "1":
		return kgo.LeaderAck()
	default:
		return kgo.AllISRAcks()
	}
}
