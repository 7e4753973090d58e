package ai

import "strings"

// Prompt templates use {name} placeholders filled by renderPrompt. Plain
// substitution of named values keeps the literal JSON braces in the templates
// inert; there is no escaping scheme to collide with.

const summarizeSystemPrompt = `You are a tutoring assistant that distills a learning conversation into a structured summary. Respond with a single valid JSON object and nothing else.`

const summarizeUserPrompt = `Analyze the following tutoring conversation and produce a JSON object with these fields:
- core_topic: string, the main topic discussed
- key_points: list of strings, the key knowledge points covered
- resolved_questions: list of strings, questions the user got answered
- unresolved_questions: list of strings, questions still open
- user_preferences: object with any of learning_style (visual|textual|hands_on|code_first), difficulty_preference (beginner|intermediate|advanced), language, include_code (bool), include_math (bool), response_format (text|html|markdown)
- weak_points: list of objects {"concept": string, "confusion_score": integer 0-100}
- subject: string or null
- topic: string or null
- difficulty: beginner|intermediate|advanced or null

Conversation:
{transcript}`

const retrievalSystemPrompt = `You are a memory retrieval assistant for a tutoring system. Given a user's query, their learning profile and their recent session memories, assemble the context a tutor should know before answering. Respond with a single valid JSON object and nothing else.`

const retrievalUserPrompt = `Build retrieval context for the query below from the profile and the memories of the last {days} days.

Query: {query}

User profile:
{profile}

Recent memories:
{memories}

Return a JSON object with:
- suggested_context: string, the context to inject before answering
- relevant_memories: list, the memories that matter for this query
- follow_up_suggestions: list of strings, good follow-up questions`

const inferenceSystemPrompt = `You infer a user's learning preferences from a short conversation. Respond with a single valid JSON object and nothing else.`

const inferenceUserPrompt = `From the conversation below, infer the user's learning preferences. Return a JSON object with any of learning_style (visual|textual|hands_on|code_first), difficulty_preference (beginner|intermediate|advanced), language, include_code (bool), include_math (bool), response_format (text|html|markdown), plus a "confidence" field in [0,1] for how certain you are overall.

Conversation:
{transcript}`

// renderPrompt substitutes {name} placeholders with the given values
func renderPrompt(template string, values map[string]string) string {
	out := template
	for name, value := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}
