package prompt

import (
	"fmt"
	"os"
	"strings"

	"copytoask/src/language"
	"copytoask/src/llm"
)

// Placeholders understood by Render.
const (
	VarText           = "text"
	VarTargetLanguage = "target_language"
)

const DefaultExplainTemplate = `请解释下面这段文字的含义，用尽量简明的中文输出：

{text}

要求：
1) 先用一句话概括
2) 再用 3-6 条要点解释关键概念/隐含前提
3) 如有必要给 1 个简短例子
4) 不确定的地方明确说明不确定
`

const DefaultTranslateTemplate = `Translate the following text to {target_language}.

Rules:
- Preserve formatting (lists/line breaks/code blocks) as much as possible.
- Do not add new information.
- If there are proper nouns, keep them as-is unless the target language commonly translates them.

Text:
{text}
`

const translateSystem = "You are a translation engine. Translate faithfully and do not add new information."

// Styles accepted by ExplainMessages.
const (
	StyleCheap    = "cheap"
	StyleMedium   = "medium"
	StyleDetailed = "detailed"
)

func styleSentence(style string) string {
	switch style {
	case StyleCheap:
		return "Be concise."
	case StyleDetailed:
		return "Be thorough: include extra context, assumptions, and a brief example when helpful."
	default:
		return "Provide a clear explanation with key points."
	}
}

// Render substitutes {name} placeholders. Unknown placeholders are left as-is.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Store holds the active templates.
type Store struct {
	Explain   string
	Translate string
}

func Defaults() *Store {
	return &Store{Explain: DefaultExplainTemplate, Translate: DefaultTranslateTemplate}
}

// Load returns the default templates with any non-empty file overriding its
// default. A missing override path is an error; an empty path is not.
func Load(explainPath, translatePath string) (*Store, error) {
	s := Defaults()
	if err := override(&s.Explain, explainPath, VarText); err != nil {
		return nil, err
	}
	if err := override(&s.Translate, translatePath, VarText); err != nil {
		return nil, err
	}
	return s, nil
}

func override(dst *string, path, required string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt template %s: %w", path, err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !strings.Contains(text, "{"+required+"}") {
		return fmt.Errorf("prompt template %s has no {%s} placeholder", path, required)
	}
	*dst = text
	return nil
}

// ExplainMessages builds the explain request for text in the base language.
func (s *Store) ExplainMessages(text string, base language.Code, style string) []llm.Message {
	system := fmt.Sprintf("You are a helpful assistant. The user will provide selected text from their screen. "+
		"Explain its meaning accurately. If the text is ambiguous, ask brief clarifying questions. "+
		"Do not fabricate sources. Output in %s. %s", base.Name(), styleSentence(style))
	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: Render(s.Explain, map[string]string{VarText: text})},
	}
}

// TranslateMessages builds the request translating a finished answer.
func (s *Store) TranslateMessages(text string, target language.Code) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: translateSystem},
		{Role: "user", Content: Render(s.Translate, map[string]string{
			VarText:           text,
			VarTargetLanguage: target.Name(),
		})},
	}
}

// AskInstructions are sent with every ask turn.
func AskInstructions(base language.Code) string {
	return "You are a helpful assistant. The user selected text on their screen and asks questions about it. " +
		"Answer accurately and concisely, using the selected text and context as the primary source. " +
		"Do not fabricate sources. Answer in " + base.Name() + " unless the user asks otherwise."
}

// FirstTurnInput embeds the context items and the selection ahead of the
// question. Later turns send the question alone.
func FirstTurnInput(contextItems []string, selection, question string) string {
	var b strings.Builder
	if len(contextItems) > 0 {
		b.WriteString("Context:\n")
		for i, item := range contextItems {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(item))
		}
		b.WriteString("\n")
	}
	if sel := strings.TrimSpace(selection); sel != "" {
		b.WriteString("Selected text:\n")
		b.WriteString(sel)
		b.WriteString("\n\n")
	}
	b.WriteString("Question:\n")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

// SummaryMessages asks for a Markdown study note over the history log in
// content. label names the covered day or day range.
func SummaryMessages(label, content string, base language.Code) []llm.Message {
	system := "You are a careful summarizer. Produce a Markdown document summarizing the user's learning " +
		"based ONLY on the provided logs. Do not invent facts. Output in " + base.Name() +
		" (keep code and terms as-is when appropriate)."
	user := "Organize the explanation records from " + label + " into a well-structured Markdown note.\n\n" +
		"Requirements:\n" +
		"- Use headings, subheadings and bullet lists\n" +
		"- Group by topic and merge repeated concepts\n" +
		"- End with a short Key Takeaways section\n" +
		"- Be concise and do not make things up\n\n" +
		"Records:\n\n" + content
	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}
