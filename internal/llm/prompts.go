package llm

import "fmt"

const systemPrompt = `You are the reasoning step of a rule-driven task processor. Answer with plain text only. No markdown, no preamble, no explanation.`

const goalPrompt = `Turn the following input into a single, concrete goal statement.

Input:
%s

Respond with ONLY the goal, on one line.`

const strategiesPrompt = `List practical strategies that would achieve the following goal.

Goal:
%s

Respond with one strategy per line, at most 5 lines. No numbering, no bullets.`

const outcomePrompt = `Describe the most likely outcome of carrying out the following strategy.

Strategy:
%s

Respond with ONLY the outcome, on one line.`

const suggestionPrompt = `Given the following recent outcome, suggest one useful next goal to pursue.

Outcome:
%s

Respond with ONLY the goal, on one line.`

const howToProceedPrompt = `How should I proceed with: %s`

// GoalPrompt asks for a goal derived from an input.
func GoalPrompt(input string) string {
	return fmt.Sprintf(goalPrompt, input)
}

// StrategiesPrompt asks for newline-separated strategies for a goal.
func StrategiesPrompt(goal string) string {
	return fmt.Sprintf(strategiesPrompt, goal)
}

func OutcomePrompt(strategy string) string {
	return fmt.Sprintf(outcomePrompt, strategy)
}

func SuggestionPrompt(context string) string {
	return fmt.Sprintf(suggestionPrompt, context)
}

// HowToProceed is the question shown to a user when no rule or fallback
// knows what to do with a thought.
func HowToProceed(content string) string {
	return fmt.Sprintf(howToProceedPrompt, content)
}
