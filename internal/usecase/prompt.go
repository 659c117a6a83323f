package usecase

import (
	"fmt"
	"strings"

	"gold-agent/internal/domain"
)

// Context window sizes for the two classifier prompts. The stage prompt sees
// less history on purpose: once the user is buying, only the immediate
// back-and-forth matters.
const (
	intentWindowSize = 10
	stageWindowSize  = 5
)

// buildContextBlock renders turns into the role-labeled block both classifier
// prompts embed. Pure function; callers pass an already-windowed slice.
func buildContextBlock(turns []domain.Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		label := "Assistant"
		if turn.Role == domain.RoleUser {
			label = "User"
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// isPriceSensitive reports whether the query should trigger a live price
// lookup before classification.
func isPriceSensitive(query string) bool {
	return strings.Contains(strings.ToLower(query), "gold")
}

// priceAnnotation renders the system note appended to the context block for
// price-sensitive queries. This is the only path by which price data reaches
// the classifier.
func priceAnnotation(quote domain.PriceQuote) string {
	if quote.Usable() {
		return fmt.Sprintf("\n[System]: The current live gold price is %.2f INR per gram. Use this for all calculations and advice.\n", quote.PerGramINR)
	}
	return "\n[System]: Gold price is currently unavailable. Do not guess, just explain general strategies.\n"
}

func buildIntentPrompt(query, contextBlock string) string {
	return strings.Join([]string{
		"You are a professional financial guide for beginners using a digital gold app.",
		"Classify the user query into one of these intents:",
		"'gold_related', 'ready_to_invest', 'general_finance', 'other_investments', or 'irrelevant'.",
		"If the query is related to gold, answer with a concise, friendly response encouraging digital gold investment.",
		"If the query is finance-related but not gold, reply that the feature is under development and suggest gold instead.",
		"If the query is irrelevant, politely redirect the conversation towards finance or gold investment.",
		"When the user states a quantity in grams, an amount in INR, or a payment method, echo them in meta.",
		"Return a raw JSON object ONLY, no Markdown and no code fences.",
		"",
		"Conversation Context:",
		contextBlock,
		"Output Format:",
		`{`,
		`  "intent": "gold_related | ready_to_invest | general_finance | other_investments | irrelevant",`,
		`  "answer": "<concise answer>",`,
		`  "meta": { "confidence": <0.0-1.0>, "grams": <float, optional>, "amount": <float, optional>, "payment_method": "<string, optional>" }`,
		`}`,
		"",
		fmt.Sprintf("User Query: %q", query),
		"Response:",
	}, "\n")
}

func buildStagePrompt(query, contextBlock string) string {
	return strings.Join([]string{
		"You are a friendly financial chatbot embedded in a digital gold app,",
		"guiding the user step-by-step through buying digital gold.",
		"Judge which stage of the purchase journey the user is in and respond with the next instruction.",
		"Stages: exploration (still deciding), ready_to_buy (wants to start),",
		"buy_step_1 (KYC), buy_step_2 (quantity), buy_step_3 (payment),",
		"buy_step_4 (vault confirmation), buy_step_5 (receipt).",
		"Keep responses concise and app-like; do not explain or convince unless asked.",
		"When the user states a quantity in grams, an amount in INR, or a payment method, echo them in meta.",
		"Return a raw JSON object ONLY, no Markdown and no code fences.",
		"",
		"Conversation Context:",
		contextBlock,
		"Output Format:",
		`{`,
		`  "stage": "exploration | ready_to_buy | buy_step_1 | buy_step_2 | buy_step_3 | buy_step_4 | buy_step_5",`,
		`  "answer": "<chatbot response with the next instruction>",`,
		`  "buy_link": "<URL for this step, or empty>",`,
		`  "meta": { "confidence": <0.0-1.0>, "grams": <float, optional>, "amount": <float, optional>, "payment_method": "<string, optional>" }`,
		`}`,
		"",
		fmt.Sprintf("User Query: %q", query),
		"Response:",
	}, "\n")
}
