package app

import (
	"sort"
	"strings"
)

// CodeSnippet is a piece of source text attached to a session, optionally
// with provenance. Language is a display hint only and is not validated
// against a fixed set.
type CodeSnippet struct {
	Code      string `json:"code"`
	Language  string `json:"language"`
	FilePath  string `json:"file_path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

// NewCodeSnippet validates line bounds up front so merges never have to.
// Bounds must be both present (non-zero) or both absent, with start <= end.
func NewCodeSnippet(code, language, filePath string, startLine, endLine int) (CodeSnippet, error) {
	if startLine < 0 || endLine < 0 {
		return CodeSnippet{}, &ValidationError{Field: "snippet.lines", Reason: "line bounds must be positive"}
	}
	if (startLine == 0) != (endLine == 0) {
		return CodeSnippet{}, &ValidationError{Field: "snippet.lines", Reason: "start_line and end_line must be set together"}
	}
	if startLine > 0 && startLine > endLine {
		return CodeSnippet{}, &ValidationError{Field: "snippet.lines", Reason: "start_line must not exceed end_line"}
	}
	return CodeSnippet{Code: code, Language: language, FilePath: filePath, StartLine: startLine, EndLine: endLine}, nil
}

// Context is the auxiliary material attached to a session: code snippets,
// referenced file paths and free-form key/value notes. FilePaths is a set,
// kept lexicographically sorted so rendering is deterministic.
type Context struct {
	CodeSnippets      []CodeSnippet     `json:"code_snippets"`
	FilePaths         []string          `json:"file_paths"`
	RepositoryPath    string            `json:"repository_path,omitempty"`
	AdditionalContext map[string]string `json:"additional_context"`
}

func NewContext() *Context {
	return &Context{AdditionalContext: map[string]string{}}
}

// AttachSnippet appends to the snippet list. Duplicates are allowed: the
// same code at two locations is meaningful. A nil context is created.
func AttachSnippet(c *Context, s CodeSnippet) *Context {
	if c == nil {
		c = NewContext()
	}
	c.CodeSnippets = append(c.CodeSnippets, s)
	return c
}

// AttachFilePath inserts path with set semantics; attaching a path that is
// already present is a no-op.
func AttachFilePath(c *Context, path string) *Context {
	if c == nil {
		c = NewContext()
	}
	i := sort.SearchStrings(c.FilePaths, path)
	if i < len(c.FilePaths) && c.FilePaths[i] == path {
		return c
	}
	c.FilePaths = append(c.FilePaths, "")
	copy(c.FilePaths[i+1:], c.FilePaths[i:])
	c.FilePaths[i] = path
	return c
}

// normalizeFilePaths restores the sorted-set invariant on a context that
// arrived from an external producer with unsorted or duplicated paths.
// Locally built contexts hold the invariant by construction.
func (c *Context) normalizeFilePaths() {
	if c == nil || len(c.FilePaths) < 2 {
		return
	}
	sort.Strings(c.FilePaths)
	kept := c.FilePaths[:1]
	for _, p := range c.FilePaths[1:] {
		if p != kept[len(kept)-1] {
			kept = append(kept, p)
		}
	}
	c.FilePaths = kept
}

// SetAdditional upserts a key/value note; an existing value for key is
// overwritten.
func SetAdditional(c *Context, key, value string) *Context {
	if c == nil {
		c = NewContext()
	}
	if c.AdditionalContext == nil {
		c.AdditionalContext = map[string]string{}
	}
	c.AdditionalContext[key] = value
	return c
}

// Merge combines two context bundles without loss: snippets are concatenated
// a then b, file paths are unioned, additional context is a overlaid by b
// (b wins on key collision) and b's repository path wins when present.
// Either side may be nil.
func Merge(a, b *Context) *Context {
	if a == nil && b == nil {
		return nil
	}
	out := NewContext()
	if a != nil {
		out.CodeSnippets = append(out.CodeSnippets, a.CodeSnippets...)
		out.RepositoryPath = a.RepositoryPath
		for _, p := range a.FilePaths {
			out = AttachFilePath(out, p)
		}
		for k, v := range a.AdditionalContext {
			out.AdditionalContext[k] = v
		}
	}
	if b != nil {
		out.CodeSnippets = append(out.CodeSnippets, b.CodeSnippets...)
		if b.RepositoryPath != "" {
			out.RepositoryPath = b.RepositoryPath
		}
		for _, p := range b.FilePaths {
			out = AttachFilePath(out, p)
		}
		for k, v := range b.AdditionalContext {
			out.AdditionalContext[k] = v
		}
	}
	return out
}

// Token estimation mirrors the conservative word-based heuristic used for
// context budgeting: ~1.3 tokens per word with a 1.2x safety margin.
const tokenSafetyMultiplier = 1.2

func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3 * tokenSafetyMultiplier)
}

// EstimateContextTokens totals the estimated token cost of everything in the
// bundle, for display in the rag panel.
func EstimateContextTokens(c *Context) int {
	if c == nil {
		return 0
	}
	total := 0
	for _, s := range c.CodeSnippets {
		total += EstimateTokens(s.Code)
	}
	for k, v := range c.AdditionalContext {
		total += EstimateTokens(k) + EstimateTokens(v)
	}
	return total
}
