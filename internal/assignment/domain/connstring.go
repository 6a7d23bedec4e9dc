package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Broker is one host:port pair within a message-log connection string.
type Broker struct {
	Host string
	Port int
}

// ConnectionString is the parsed form of a message-log source/destination
// connection string: proto://host[:port][,host:port...]/topic.
//
// The scheme is carried verbatim rather than restricted to a fixed enum, so
// that real transport schemes like "kafka" or "kafkassl" round-trip
// exactly. TLS is derived from an "ssl" scheme suffix rather than from a
// fixed proto set.
type ConnectionString struct {
	Scheme  string
	TLS     bool
	Brokers []Broker
	Topic   string
}

// Parse parses a message-log connection string. Hosts are sorted
// lexicographically by host then numerically by port before comparison so
// two connection strings naming the same broker set in a different order
// compare equal.
func Parse(raw string) (*ConnectionString, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, &InvalidConnectionString{Input: raw, Reason: "missing proto:// prefix"}
	}
	if scheme == "" {
		return nil, &InvalidConnectionString{Input: raw, Reason: "proto must not be empty"}
	}
	tls := strings.HasSuffix(strings.ToLower(scheme), "ssl") || strings.EqualFold(scheme, "tls")

	slash := strings.LastIndex(rest, "/")
	if slash < 0 {
		return nil, &InvalidConnectionString{Input: raw, Reason: "missing /topic suffix"}
	}
	hostPart, topic := rest[:slash], rest[slash+1:]

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &InvalidConnectionString{Input: raw, Reason: "topic is mandatory and must be non-empty after trimming"}
	}

	if hostPart == "" {
		return nil, &InvalidConnectionString{Input: raw, Reason: "host list must not be empty"}
	}

	hostEntries := strings.Split(hostPart, ",")
	brokers := make([]Broker, 0, len(hostEntries))
	for _, entry := range hostEntries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, &InvalidConnectionString{Input: raw, Reason: "empty host entry in host list"}
		}
		host, portStr, hasPort := strings.Cut(entry, ":")
		if host == "" {
			return nil, &InvalidConnectionString{Input: raw, Reason: fmt.Sprintf("empty host in entry %q", entry)}
		}
		port := 0
		if hasPort {
			p, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, &InvalidConnectionString{Input: raw, Reason: fmt.Sprintf("non-numeric port in entry %q", entry)}
			}
			if p < 1 || p > 65535 {
				return nil, &InvalidConnectionString{Input: raw, Reason: fmt.Sprintf("port %d out of range [1,65535]", p)}
			}
			port = p
		}
		brokers = append(brokers, Broker{Host: host, Port: port})
	}

	sort.Slice(brokers, func(i, j int) bool {
		if brokers[i].Host != brokers[j].Host {
			return brokers[i].Host < brokers[j].Host
		}
		return brokers[i].Port < brokers[j].Port
	})

	return &ConnectionString{Scheme: scheme, TLS: tls, Brokers: brokers, Topic: topic}, nil
}

// String serializes the connection string in canonical, host-sorted form.
// Parse(cs.String()) reproduces an equal value.
func (c *ConnectionString) String() string {
	parts := make([]string, len(c.Brokers))
	for i, b := range c.Brokers {
		if b.Port == 0 {
			parts[i] = b.Host
		} else {
			parts[i] = fmt.Sprintf("%s:%d", b.Host, b.Port)
		}
	}
	return fmt.Sprintf("%s://%s/%s", c.Scheme, strings.Join(parts, ","), c.Topic)
}
