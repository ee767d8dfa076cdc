// Package leads defines the core types and interfaces shared across the
// lead-generation pipeline: leads, query specs, job configuration, and the
// seams to persistence, session tracking, event delivery, and analyzers.
package leads
