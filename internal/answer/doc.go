// Package answer orchestrates question answering over the retrieval
// engine.
//
// The pipeline is classify, expand, retrieve concurrently, gate on
// retrieval sufficiency, generate, gate on generation confidence, merge
// citations. Ask and AskStream never fail: panics, retrieval errors, and
// backend failures all degrade to fixed user-facing messages.
package answer
