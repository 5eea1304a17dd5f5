// Package workflow advances presentations through the configured pipeline
// stages.
//
// The Manager polls the store, reclaims stale work via heartbeats, and feeds
// presentations into registered stage handlers (renderer, generator, composer)
// while capturing progress and failure metadata. It also aggregates store
// stats, calls stage health checks, and emits notifications when processing
// completes or fails.
//
// Add new lifecycle stages by extending StageSet, updating the store status
// enums, and teaching the manager how to transition presentations; this
// package is the authoritative home for that coordination logic.
package workflow
