// Package generate defines the contract between the processing pipeline and
// the external image generation service. The pipeline depends only on the
// Generator interface; the Gemini-backed implementation lives in
// internal/services/gemini.
package generate
