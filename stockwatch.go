// Package stockwatch watches product pages and reports when their stock
// state changes. It polls each target on a fixed interval, classifies the
// fetched page as available or not, and relays transitions to an operator
// through one or more notification sinks, repeating an "in stock" alert a
// bounded number of times.
//
// This package contains domain types, interfaces and the pure tracking
// decision table. Implementations live in subdirectories named after their
// primary dependency (e.g., sqlite/, telegram/, rod/); the polling
// orchestration lives in watch/.
package stockwatch
