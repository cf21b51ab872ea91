// Package markup converts the assembled structured document into final
// transport HTML. Validation is soft: structural issues become warnings on
// the result, never failures, so rendering always produces a best-effort
// document.
//
// The structured markup is parsed with the lenient x/net/html parser (via
// goquery), which accepts the raw rich-text HTML embedded in text elements
// without choking on malformed fragments.
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Result is the outcome of one render. HTML is always populated.
type Result struct {
	HTML     string
	Warnings []string
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// selfClosing matches self-closing custom elements ("<mj-image ... />").
// The HTML parser ignores the trailing slash on unknown elements, which
// would swallow following siblings as children, so they are expanded to an
// explicit open/close pair before parsing.
var selfClosing = regexp.MustCompile(`<(mj-[a-z0-9-]+)((?:[^<>"]|"[^"]*")*?)\s*/>`)

func normalizeSelfClosing(src string) string {
	return selfClosing.ReplaceAllString(src, "<$1$2></$1>")
}

// attributeDefaults holds the shared attributes declared in mj-attributes,
// keyed by element name ("mj-all" applies to every element).
type attributeDefaults map[string]map[string]string

func (d attributeDefaults) lookup(tag, name, fallback string) string {
	if attrs, ok := d[tag]; ok {
		if v, ok := attrs[name]; ok {
			return v
		}
	}
	if attrs, ok := d["mj-all"]; ok {
		if v, ok := attrs[name]; ok {
			return v
		}
	}
	return fallback
}

// Render converts structured markup to transport HTML.
func Render(src string) *Result {
	res := &Result{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(normalizeSelfClosing(src)))
	if err != nil {
		// The lenient parser only fails on reader errors; emit an empty
		// shell rather than nothing.
		res.warnf("parse: %v", err)
		res.HTML = pageShell("", "", "")
		return res
	}

	title := strings.TrimSpace(doc.Find("mj-title").First().Text())
	preview := strings.TrimSpace(doc.Find("mj-preview").First().Text())
	defaults := collectDefaults(doc)

	container := doc.Find("mj-body").First()
	if container.Length() == 0 {
		res.warnf("document has no mj-body; rendering all sections")
		container = doc.Find("body").First()
	}

	var body strings.Builder
	container.Children().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch name {
		case "mj-section":
			renderSection(s, defaults, res, &body)
		case "mj-head", "mj-attributes", "mj-title", "mj-preview":
			// Head content hoisted separately; ignore here.
		default:
			res.warnf("unexpected <%s> directly inside mj-body", name)
			inner, _ := s.Html()
			body.WriteString(inner)
		}
	})

	res.HTML = pageShell(title, preview, body.String())
	return res
}

func collectDefaults(doc *goquery.Document) attributeDefaults {
	defaults := attributeDefaults{}
	doc.Find("mj-attributes").First().Find("*").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if !strings.HasPrefix(name, "mj-") {
			return
		}
		attrs, ok := defaults[name]
		if !ok {
			attrs = map[string]string{}
			defaults[name] = attrs
		}
		for _, a := range s.Nodes[0].Attr {
			attrs[a.Key] = a.Val
		}
	})
	return defaults
}

// attrOf resolves one attribute: node value → element default → mj-all
// default → fallback.
func attrOf(s *goquery.Selection, defaults attributeDefaults, tag, name, fallback string) string {
	if v, ok := s.Attr(name); ok && v != "" {
		return v
	}
	return defaults.lookup(tag, name, fallback)
}

func renderSection(s *goquery.Selection, defaults attributeDefaults, res *Result, out *strings.Builder) {
	bg := attrOf(s, defaults, "mj-section", "background-color", "#ffffff")
	padding := attrOf(s, defaults, "mj-section", "padding", "0")

	fmt.Fprintf(out, `<table role="presentation" width="100%%" cellpadding="0" cellspacing="0" style="background-color:%s;"><tr><td style="padding:%s;">`, bg, padding)
	fmt.Fprintf(out, `<table role="presentation" width="600" align="center" cellpadding="0" cellspacing="0"><tr>`)

	columns := s.ChildrenFiltered("mj-column")
	if columns.Length() == 0 {
		res.warnf("mj-section without mj-column")
		out.WriteString(`<td valign="top" width="100%">`)
		renderColumnContent(s, defaults, res, out)
		out.WriteString(`</td>`)
	} else {
		width := 100 / columns.Length()
		columns.Each(func(_ int, col *goquery.Selection) {
			fmt.Fprintf(out, `<td valign="top" width="%d%%">`, width)
			renderColumnContent(col, defaults, res, out)
			out.WriteString(`</td>`)
		})
	}

	out.WriteString(`</tr></table></td></tr></table>`)
}

func renderColumnContent(col *goquery.Selection, defaults attributeDefaults, res *Result, out *strings.Builder) {
	col.Children().Each(func(_ int, s *goquery.Selection) {
		switch name := goquery.NodeName(s); name {
		case "mj-text":
			renderText(s, defaults, out)
		case "mj-image":
			renderImage(s, defaults, res, out)
		case "mj-button":
			renderButton(s, defaults, res, out)
		case "mj-divider":
			border := attrOf(s, defaults, "mj-divider", "border-color", "#e0e0e0")
			fmt.Fprintf(out, `<div style="border-top:1px solid %s;margin:10px 0;"></div>`, border)
		case "mj-spacer":
			height := attrOf(s, defaults, "mj-spacer", "height", "20px")
			fmt.Fprintf(out, `<div style="height:%s;line-height:%s;">&#8202;</div>`, height, height)
		default:
			res.warnf("unknown element <%s> inside column", name)
			inner, _ := s.Html()
			out.WriteString(inner)
		}
	})
}

func renderText(s *goquery.Selection, defaults attributeDefaults, out *strings.Builder) {
	font := attrOf(s, defaults, "mj-text", "font-family", "Arial, sans-serif")
	size := attrOf(s, defaults, "mj-text", "font-size", "14px")
	color := attrOf(s, defaults, "mj-text", "color", "#333333")
	lineHeight := attrOf(s, defaults, "mj-text", "line-height", "1.6")
	align := attrOf(s, defaults, "mj-text", "align", "left")
	weight := attrOf(s, defaults, "mj-text", "font-weight", "")
	pad := attrOf(s, defaults, "mj-text", "padding", "10px 25px")

	style := fmt.Sprintf("font-family:%s;font-size:%s;color:%s;line-height:%s;text-align:%s;padding:%s;",
		font, size, color, lineHeight, align, pad)
	if weight != "" {
		style += "font-weight:" + weight + ";"
	}

	inner, _ := s.Html()
	fmt.Fprintf(out, `<div style="%s">%s</div>`, style, inner)
}

func renderImage(s *goquery.Selection, defaults attributeDefaults, res *Result, out *strings.Builder) {
	src, ok := s.Attr("src")
	if !ok || src == "" {
		res.warnf("mj-image without src")
		return
	}
	alt := attrOf(s, defaults, "mj-image", "alt", "")
	width := attrOf(s, defaults, "mj-image", "width", "")

	style := "display:block;margin:0 auto;max-width:100%;"
	if width != "" {
		style += "width:" + width + ";"
	}
	fmt.Fprintf(out, `<img src="%s" alt="%s" style="%s">`, src, html.EscapeString(alt), style)
}

func renderButton(s *goquery.Selection, defaults attributeDefaults, res *Result, out *strings.Builder) {
	href, ok := s.Attr("href")
	if !ok || href == "" {
		res.warnf("mj-button without href")
		href = "#"
	}
	bg := attrOf(s, defaults, "mj-button", "background-color", "#007bff")
	color := attrOf(s, defaults, "mj-button", "color", "#ffffff")

	inner, _ := s.Html()
	fmt.Fprintf(out,
		`<div style="text-align:center;padding:10px 25px;"><a href="%s" style="display:inline-block;background-color:%s;color:%s;padding:10px 25px;border-radius:3px;text-decoration:none;font-weight:bold;">%s</a></div>`,
		href, bg, color, strings.TrimSpace(inner))
}

func pageShell(title, preview, body string) string {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body style=\"margin:0;padding:0;background-color:#f4f4f4;\">\n")
	if preview != "" {
		fmt.Fprintf(&b, `<div style="display:none;max-height:0;overflow:hidden;">%s</div>`+"\n", html.EscapeString(preview))
	}
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>")
	return b.String()
}
