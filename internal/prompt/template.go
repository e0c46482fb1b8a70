package prompt

import (
	"strings"
	"text/template"

	"chatd/internal/gguf"
)

// TemplateError indicates missing or unusable chat-template metadata.
type TemplateError struct{ Reason string }

func (e TemplateError) Error() string { return "chat template: " + e.Reason }

// IsTemplateError reports whether err is a TemplateError.
func IsTemplateError(err error) bool {
	_, ok := err.(TemplateError)
	return ok
}

// Dialect names a supported chat-template family. The Jinja template text
// embedded in GGUF metadata is not executed directly; it is fingerprinted to
// pick an equivalent native template.
type Dialect string

const (
	DialectLlama3  Dialect = "llama3"
	DialectChatML  Dialect = "chatml"
	DialectMistral Dialect = "mistral"
)

// Engine renders a message sequence into the exact prompt string the loaded
// model expects. Construction happens once at model load; Render is pure and
// performs no I/O.
type Engine struct {
	dialect Dialect
	tmpl    *template.Template
	bos     string
	eos     string
}

type templateData struct {
	Messages []ChatMessage
	BOS      string
	EOS      string
}

// Native equivalents of the well-known GGUF chat templates. Each appends the
// generation prompt for the assistant turn, mirroring
// add_generation_prompt=true.
var dialectTemplates = map[Dialect]string{
	DialectLlama3: `{{.BOS}}{{range .Messages}}<|start_header_id|>{{.Role}}<|end_header_id|>

{{.Content}}<|eot_id|>{{end}}<|start_header_id|>assistant<|end_header_id|>

`,
	DialectChatML: `{{range .Messages}}<|im_start|>{{.Role}}
{{.Content}}<|im_end|>
{{end}}<|im_start|>assistant
`,
	DialectMistral: `{{.BOS}}{{range .Messages}}{{if .Assistant}}{{.Content}}{{$.EOS}}{{else}}[INST] {{.Content}} [/INST]{{end}}{{end}}`,
}

// NewEngine builds an Engine from GGUF metadata. It fails when the
// tokenizer.chat_template key is absent or its dialect is not recognized.
func NewEngine(meta *gguf.File) (*Engine, error) {
	raw, ok := meta.String("tokenizer.chat_template")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, TemplateError{Reason: "tokenizer.chat_template metadata is missing"}
	}
	dialect, err := detectDialect(raw)
	if err != nil {
		return nil, err
	}
	bos, eos := specialTokens(meta)
	return NewEngineForDialect(dialect, bos, eos)
}

func NewEngineForDialect(d Dialect, bos, eos string) (*Engine, error) {
	text, ok := dialectTemplates[d]
	if !ok {
		return nil, TemplateError{Reason: "no native template for dialect " + string(d)}
	}
	tmpl, err := template.New(string(d)).Parse(text)
	if err != nil {
		return nil, TemplateError{Reason: "parse: " + err.Error()}
	}
	return &Engine{dialect: d, tmpl: tmpl, bos: bos, eos: eos}, nil
}

// Dialect returns the detected template family.
func (e *Engine) Dialect() Dialect { return e.dialect }

// Render produces the prompt string for the given messages. The same input
// always yields byte-identical output.
func (e *Engine) Render(msgs []ChatMessage) (string, error) {
	if len(msgs) == 0 {
		return "", TemplateError{Reason: "empty message sequence"}
	}
	var sb strings.Builder
	data := templateData{Messages: msgs, BOS: e.bos, EOS: e.eos}
	if err := e.tmpl.Execute(&sb, data); err != nil {
		return "", TemplateError{Reason: "render: " + err.Error()}
	}
	return sb.String(), nil
}

// detectDialect fingerprints the Jinja template text shipped in the model
// metadata. Unknown templates are an error rather than a silent fallback;
// sending a model the wrong prompt framing degrades output unpredictably.
func detectDialect(raw string) (Dialect, error) {
	switch {
	case strings.Contains(raw, "<|start_header_id|>"):
		return DialectLlama3, nil
	case strings.Contains(raw, "<|im_start|>"):
		return DialectChatML, nil
	case strings.Contains(raw, "[INST]"):
		return DialectMistral, nil
	default:
		return "", TemplateError{Reason: "unrecognized chat template dialect"}
	}
}

// specialTokens resolves the BOS/EOS token strings from tokenizer metadata.
// Missing entries degrade to empty strings; templates that need them render
// without, matching runtimes that insert BOS during tokenization.
func specialTokens(meta *gguf.File) (bos, eos string) {
	if id, ok := meta.Uint("tokenizer.ggml.bos_token_id"); ok {
		if s, ok := meta.TokenString(id); ok {
			bos = s
		}
	}
	if id, ok := meta.Uint("tokenizer.ggml.eos_token_id"); ok {
		if s, ok := meta.TokenString(id); ok {
			eos = s
		}
	}
	return bos, eos
}
