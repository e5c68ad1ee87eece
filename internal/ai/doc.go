// Package ai turns an email body and its attachment summaries into a short
// chat-ready analysis using Gemini.
//
// Summarize never fails: any error, including an open circuit breaker, yields
// the Fallback text so the email is still relayed.
package ai
