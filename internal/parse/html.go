package parse

import (
	"strings"

	"golang.org/x/net/html"
)

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"title": true, "center": true, "blockquote": true, "pre": true, "hr": true, "ul": true, "ol": true,
}

// HTMLToText strips markup from an HTML body. Block elements break lines,
// entity references are decoded, runs of whitespace collapse to one space,
// and blank lines are dropped.
func HTMLToText(doc string) string {
	if doc == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(doc))
	var sb strings.Builder
	skip, pre := 0, 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read.
			return collapse(sb.String())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipElements[tag] {
				switch tt {
				case html.StartTagToken:
					skip++
				case html.EndTagToken:
					if skip > 0 {
						skip--
					}
				}
				continue
			}
			if tag == "pre" {
				if tt == html.StartTagToken {
					pre++
				} else if tt == html.EndTagToken && pre > 0 {
					pre--
				}
			}
			if blockElements[tag] {
				sb.WriteByte('\n')
			} else if tag == "td" || tag == "th" {
				sb.WriteByte(' ')
			}
		case html.TextToken:
			switch {
			case skip > 0:
			case pre > 0:
				sb.Write(z.Text())
			default:
				sb.WriteString(lineBreaks.Replace(string(z.Text())))
			}
		}
	}
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if l := strings.Join(strings.Fields(line), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// LooksLikeHTML reports whether s appears to contain HTML markup.
func LooksLikeHTML(s string) bool {
	head := s
	if len(head) > 4096 {
		head = head[:4096]
	}
	head = strings.ToLower(head)
	for _, marker := range []string{"<html", "<body", "<div", "<table", "<font", "<p>", "<p "} {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
