package tui

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"devdeck/internal/app"
)

// languageForPath maps a file extension to the display language shown on the
// code panel. Unknown extensions fall back to "text".
func languageForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".sh", ".bash":
		return "shell"
	case ".sql":
		return "sql"
	case ".yml", ".yaml":
		return "yaml"
	case ".json":
		return "json"
	case ".md":
		return "markdown"
	case ".html":
		return "html"
	case ".css":
		return "css"
	default:
		return "text"
	}
}

func isImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	default:
		return false
	}
}

// snippetFromFile builds a code snippet from path, restricted to the given
// 1-based line range when both bounds are positive.
func snippetFromFile(path string, start, end int) (app.CodeSnippet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.CodeSnippet{}, err
	}
	code := strings.ReplaceAll(string(data), "\r\n", "\n")
	if start > 0 {
		lines := strings.Split(code, "\n")
		if start > len(lines) {
			return app.CodeSnippet{}, &app.ValidationError{Field: "snippet.lines", Reason: "start_line is past the end of the file"}
		}
		if end > len(lines) {
			end = len(lines)
		}
		code = strings.Join(lines[start-1:end], "\n")
	}
	return app.NewCodeSnippet(code, languageForPath(path), path, start, end)
}

// attachmentFromFile builds a message attachment from path: images are
// base64-encoded, source files ride as code, everything else as file.
func attachmentFromFile(path string) (app.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.Attachment{}, err
	}
	name := filepath.Base(path)
	if isImagePath(path) {
		return app.NewAttachment(string(app.AttachmentImage), name, base64.StdEncoding.EncodeToString(data))
	}
	typ := app.AttachmentFile
	if languageForPath(path) != "text" {
		typ = app.AttachmentCode
	}
	return app.NewAttachment(string(typ), name, string(data))
}
