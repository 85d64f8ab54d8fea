// Package preview composes a learner's files into one self-contained document and
// manages the sandboxed surfaces that render it.
package preview

import (
	"html"
	"strings"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/dlclark/regexp2"
)

// Sources is the plain-text input to the renderer. It is always supplied in full.
type Sources struct {
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	JavaScript string `json:"javascript"`
}

// SourcesFromFiles selects the first .html, .css and .js working files.
// Missing files yield empty strings.
func SourcesFromFiles(files []domain.WorkingFile) Sources {
	var src Sources
	var haveHTML, haveCSS, haveJS bool
	for _, f := range files {
		switch {
		case !haveHTML && strings.HasSuffix(f.Name, ".html"):
			src.HTML, haveHTML = f.Content, true
		case !haveCSS && strings.HasSuffix(f.Name, ".css"):
			src.CSS, haveCSS = f.Content, true
		case !haveJS && strings.HasSuffix(f.Name, ".js"):
			src.JavaScript, haveJS = f.Content, true
		}
	}
	return src
}

// errorConsole reports uncaught errors inside the preview itself. It runs before
// any learner code and stops errors from reaching the browser's default handler.
const errorConsole = `(function () {
  function show(text) {
    var box = document.getElementById('__preview_errors');
    if (!box) {
      box = document.createElement('pre');
      box.id = '__preview_errors';
      box.style.cssText = 'position:fixed;left:0;right:0;bottom:0;margin:0;max-height:40%;overflow:auto;padding:8px;background:#fdecea;color:#a11;font:12px/1.4 monospace;z-index:2147483647;';
      (document.body || document.documentElement).appendChild(box);
    }
    box.textContent += text + '\n';
  }
  window.addEventListener('error', function (e) {
    show('Error: ' + e.message + (e.lineno ? ' (line ' + e.lineno + ')' : ''));
    e.preventDefault();
  });
  window.addEventListener('unhandledrejection', function (e) {
    show('Unhandled rejection: ' + e.reason);
    e.preventDefault();
  });
})();`

var (
	closingScript = regexp2.MustCompile(`</(script)`, regexp2.IgnoreCase)
	closingStyle  = regexp2.MustCompile(`</(style)`, regexp2.IgnoreCase)
)

// Compose builds the preview document: CSS in a style block, the HTML as body
// content, and the script in a block appended to the body. Markup is not
// validated; browsers render malformed HTML on a best-effort basis.
func Compose(src Sources) string {
	var b strings.Builder
	b.Grow(len(src.HTML) + len(src.CSS) + len(src.JavaScript) + len(errorConsole) + 256)

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	b.WriteString("<script>\n")
	b.WriteString(errorConsole)
	b.WriteString("\n</script>\n<style>\n")
	b.WriteString(neutralize(closingStyle, src.CSS))
	b.WriteString("\n</style>\n</head>\n<body>\n")
	b.WriteString(src.HTML)
	b.WriteString("\n<script>\n")
	b.WriteString(neutralize(closingScript, src.JavaScript))
	b.WriteString("\n</script>\n</body>\n</html>\n")
	return b.String()
}

// neutralize rewrites closing-tag sequences so embedded text cannot end its
// enclosing block early.
func neutralize(re *regexp2.Regexp, s string) string {
	out, err := re.Replace(s, `<\/$1`, -1, -1)
	if err != nil {
		return s
	}
	return out
}

// FrameHTML returns the host-side markup for a sandboxed preview surface.
// Only scripts are allowed: the frame gets an opaque origin, so it cannot read
// host cookies or storage, navigate the host, open popups or submit forms.
func FrameHTML(src string) string {
	return `<iframe title="Preview" sandbox="allow-scripts" referrerpolicy="no-referrer" src="` +
		html.EscapeString(src) + `"></iframe>`
}
