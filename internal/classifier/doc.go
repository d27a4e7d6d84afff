// Package classifier talks to an OpenAI-compatible vision-language model
// endpoint. Each classification sends one inspection image plus a job
// prompt and expects a JSON object back, repairing common formatting
// quirks such as markdown code fences before decoding.
package classifier
