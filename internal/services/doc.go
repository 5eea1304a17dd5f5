// Package services holds cross-cutting helpers shared by external service
// integrations: sentinel error markers for failure classification and
// context keys that thread request metadata through component boundaries.
package services
