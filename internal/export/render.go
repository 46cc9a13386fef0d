package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/narrative.html.tmpl
var narrativeTemplateSrc string

//go:embed static/static_narrative.css
var pageCSS string

//go:embed static/kbase_icons.css
var iconCSS string

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// renderMarkdown converts a markdown cell source to HTML.
func renderMarkdown(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown cell: %w", err)
	}
	return template.HTML(buf.String()), nil
}

var pageTemplate = template.Must(template.New("narrative").Funcs(template.FuncMap{
	"display": displayValue,
	"safeurl": func(s string) template.URL { return template.URL(s) },
	"safecss": func(s string) template.CSS { return template.CSS(s) },
	"paramGroup": func(label string, params []Param) map[string]any {
		return map[string]any{"Label": label, "Params": params}
	},
}).Parse(narrativeTemplateSrc))

// pageData is the template root: the assembled page plus the inlined styles.
type pageData struct {
	*Page
	Styles template.CSS
}

// renderPage produces the final self-contained HTML document. All style
// assets, including the icon font declarations, are inlined so the page has
// no required stylesheet fetches.
func renderPage(page *Page, assetsBaseURL, assetsVersion string) ([]byte, error) {
	styles := pageCSS + "\n" + iconFontCSS(assetsBaseURL, assetsVersion) + iconCSS

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{Page: page, Styles: template.CSS(styles)})
	if err != nil {
		return nil, fmt.Errorf("failed to render narrative page: %w", err)
	}
	return buf.Bytes(), nil
}

// iconFontCSS generates the @font-face chunk loading the icon font from the
// versioned assets host.
func iconFontCSS(assetsBaseURL, assetsVersion string) string {
	fontURL := assetsBaseURL + "/fonts/" + assetsVersion + "/kbase-icons"
	return "@font-face {\n" +
		"    font-family: \"kbase-icons\";\n" +
		fmt.Sprintf("    src:url(%q);\n", fontURL+".eot") +
		fmt.Sprintf("    src:url(%q) format(\"embedded-opentype\"),\n", fontURL+".eot?#iefix") +
		fmt.Sprintf("        url(%q) format(\"woff\"),\n", fontURL+".woff") +
		fmt.Sprintf("        url(%q) format(\"truetype\"),\n", fontURL+".ttf") +
		fmt.Sprintf("        url(%q) format(\"svg\");\n", fontURL+".svg#kbase-icons") +
		"    font-weight: normal;\n" +
		"    font-style: normal;\n" +
		"}\n"
}

// displayValue renders a parameter value for the page: lists join with
// commas, nil shows as an empty string, everything else prints naturally.
func displayValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, displayValue(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
