package assist

import "strings"

// SystemPrompt is sent with every rephrase request.
const SystemPrompt = "You are a helpful assistant."

// RephrasePrompt asks for ten variations of {text} in {lang}.
const RephrasePrompt = `As an expert linguist and translator, create 10 different variations of the following text translated into {lang}:

Sentence: "{text}"

Requirements for each variation:
1. Preserve the EXACT same meaning as the original
2. Employ distinctly different grammatical structures and sentence patterns
3. Maintain the original tone (formal/informal/technical/conversational)
4. Keep all specialized terminology and key concepts intact
5. Ensure each version sounds natural and idiomatic in {lang}

For each variation:
- Number them 1-10
- Prioritize structural variety over simple synonym substitution
- Rearrange sentence elements when possible (passive/active voice, conditional structures, etc.)
- Vary sentence length and complexity while maintaining meaning
- Use different discourse markers and connectors between ideas

The goal is to showcase the linguistic flexibility of {lang} while preserving the complete message and nuance of the original text.

IMPORTANT: Respond ONLY with the numbered list of variations. Do not include any explanations, introductions, or other text.

REFERENCE (Original Text):
"{text}"`

// Languages offered by the rephrase pane.
var Languages = []string{"Japanese", "English", "Indonesian"}

// BuildPrompt fills the rephrase template. The placeholders are replaced in
// a single pass, so text containing "{lang}" is left alone.
func BuildPrompt(text, lang string) string {
	return strings.NewReplacer("{text}", text, "{lang}", lang).Replace(RephrasePrompt)
}
