package ai

import (
	"fmt"
	"strings"
)

// DefaultLanguage is the language the analysis is written in.
const DefaultLanguage = "English"

const promptTemplate = `Act as a senior analyst and executive assistant. Process an email and a summary of its attachments (if any) and write a professional report.

INPUTS:
----------------
📧 EMAIL BODY:
%s

📊 ATTACHMENT DATA (summary/structure):
%s
----------------

INSTRUCTIONS:
1. Identify the tone and main intent of the email.
2. If there is attachment data, look for key metrics, trends, totals or anomalies. Interpret what the numbers say instead of only describing the file.
3. Cross-check: does the attachment answer what the email asks for?

OUTPUT FORMAT (chat style, no greetings):

📩 *EXECUTIVE SUMMARY*
• *Sender/intent:* who is writing and what they want
• *Key points:* short list of requests or important dates

📊 *DATA ANALYSIS* (only when there is attachment data)
• *Content:* what the file is about
• *Key findings:* totals, averages, highest/lowest values or patterns
• *Technical note:* data quality or relevant columns
(If nothing is analyzable, say "No analyzable information found in the attachment".)

💡 *CONCLUSION / SUGGESTED ACTION*
A short professional verdict or suggested reply.

RULES:
- Keep an objective, professional tone.
- Be concise but informative.
- Always answer in %s.`

// BuildPrompt renders the analysis prompt. Inputs are expected to be valid UTF-8.
func BuildPrompt(dataSummary, body, language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(body), strings.TrimSpace(dataSummary), language)
}

// Sanitize drops invalid UTF-8 sequences.
func Sanitize(s string) string {
	return strings.ToValidUTF8(s, "")
}
