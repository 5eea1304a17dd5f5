// Package notifications delivers ntfy push notifications for pipeline
// milestones. A noop implementation is used when no topic is configured.
package notifications
