package alert

import (
	"html"
	"io"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/core/user"
)

// Template placeholders
const (
	PlaceholderActivityLink = "{alink}"
	PlaceholderCourseLink   = "{clink}"
	PlaceholderCourseFull   = "{cfull}"
	PlaceholderCourseShort  = "{cshort}"
	PlaceholderUserFullName = "{userfullname}"
)

type Renderer struct {
	baseURL string
}

func NewRenderer(baseURL string) *Renderer {
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/")}
}

// Render substitutes the placeholders of tmpl and returns the plain text and HTML bodies.
// act may be nil, in which case {alink} renders an empty link.
// Unknown placeholders are left as is.
func (r *Renderer) Render(tmpl string, crs course.Course, usr user.User, act *course.Activity) (text, htmlBody string) {
	var activityLink string
	if act != nil {
		activityLink = link(course.ActivityURL(r.baseURL, *act), act.Name)
	} else {
		activityLink = link("", "")
	}

	// a single pass: substituted values are never scanned again
	replacer := strings.NewReplacer(
		PlaceholderActivityLink, activityLink,
		PlaceholderCourseLink, link(course.CourseURL(r.baseURL, crs.ID), crs.FullName),
		PlaceholderCourseFull, html.EscapeString(crs.FullName),
		PlaceholderCourseShort, html.EscapeString(crs.ShortName),
		PlaceholderUserFullName, html.EscapeString(usr.FullName()),
	)
	htmlBody = nl2br(replacer.Replace(tmpl))
	return htmlToText(htmlBody), htmlBody
}

func link(href, name string) string {
	return `<a href="` + html.EscapeString(href) + `">` + html.EscapeString(name) + `</a>`
}

// nl2br inserts "<br />" before every line break (\r\n, \n\r, \n or \r).
func nl2br(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\n' && c != '\r' {
			b.WriteByte(c)
			continue
		}
		b.WriteString("<br />")
		b.WriteByte(c)
		if i+1 < len(s) && (s[i+1] == '\n' || s[i+1] == '\r') && s[i+1] != c {
			i++
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// htmlToText strips markup from s. Line breaks come from <br> and block ends only,
// links keep their target as "name [url]".
func htmlToText(s string) string {
	z := nethtml.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	var href, anchorText string
	inAnchor := false

	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			if z.Err() != io.EOF {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(b.String())

		case nethtml.TextToken:
			txt := strings.NewReplacer("\r\n", "", "\n", "", "\r", "").Replace(string(z.Text()))
			b.WriteString(txt)
			if inAnchor {
				anchorText += txt
			}

		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch tag := string(name); {
			case tag == "br":
				b.WriteString("\n")
			case tag == "a" && tt == nethtml.StartTagToken:
				inAnchor, href, anchorText = true, "", ""
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
			}

		case nethtml.EndTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case tag == "a" && inAnchor:
				if href != "" && href != anchorText {
					b.WriteString(" [" + href + "]")
				}
				inAnchor = false
			case blockTags[tag]:
				b.WriteString("\n")
			}
		}
	}
}
