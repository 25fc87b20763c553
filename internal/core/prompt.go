package core

import "fmt"

const (
	// ClassificationSystemMessage frames every classification request
	ClassificationSystemMessage = "You are an AI assistant that analyzes call transcripts to detect intent, spam likelihood, and recommend actions. Respond only with JSON."

	// ReplySystemMessage frames free-text reply generation
	ReplySystemMessage = "You are a helpful, friendly voice assistant for call screening. Keep responses brief (1-2 sentences), clear, and professional."

	classificationPromptFormat = `Analyze the following call transcript and determine the caller's intent and how likely the call is to be spam.
Respond with a JSON object containing exactly these fields:
- intent: string (short description of why the caller is calling)
- confidence: number between 0 and 1 (how confident you are in the intent)
- spamLikelihood: number between 0 and 1 (higher means more likely to be spam)
- sentiment: one of "positive", "neutral", "negative"
- suggestedResponse: string (a short reply the assistant could speak to the caller)
- actionRecommendation: one of "forward", "take_message", "block_caller", "offer_callback"

Transcript:
%s

Respond only with the JSON object and nothing else.`
)

// ClassificationPrompt builds the user message sent to the classifier
func ClassificationPrompt(transcript string) string {
	return fmt.Sprintf(classificationPromptFormat, transcript)
}

// GenericCalleeName is used in the greeting when the callee's name is unknown
const GenericCalleeName = "the person you're calling"

// Greeting is the line spoken to the caller when screening starts
func Greeting(assistantName, calleeName string) string {
	if calleeName == "" {
		calleeName = GenericCalleeName
	}
	return fmt.Sprintf("Hello, this is %s, an AI assistant for %s. May I ask who's calling and the purpose of your call?", assistantName, calleeName)
}

// DecisionLine is what the assistant says to the caller once the user decides
func DecisionLine(d Decision) string {
	switch d {
	case DecisionAccept:
		return "Connecting you now."
	case DecisionDeclineMessage:
		return "I'm sorry, they're not available right now. Can I take a message?"
	case DecisionScheduleCallback:
		return "I'll let them know you called and schedule a callback."
	default:
		return ""
	}
}

// ReplyPrompt asks for a short acknowledgement of what the caller said while
// the user decides what to do with the call
func ReplyPrompt(transcript, intent string) string {
	return fmt.Sprintf("A caller said: %q\nTheir intent appears to be: %s\nWrite what the assistant should say to acknowledge them and let them know their call is being passed on. Do not promise that the call will be connected.", transcript, intent)
}
