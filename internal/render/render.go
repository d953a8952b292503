// Package render produces the browsing surface of the archive: one HTML
// page per day, a stable index.html pointing at the newest page, and
// day-to-day navigation links.
package render

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stripd/internal/aggregate"
	"stripd/internal/dateutil"
	"stripd/internal/strips"
)

//go:embed style.css
var defaultCSS []byte

// PageName is the daily page filename for a date.
func PageName(d dateutil.ResolvedDate) string {
	return "dailystrips-" + d.Time().Format("2006.01.02") + ".html"
}

type Renderer struct {
	// Dir is the archive root the pages live in.
	Dir string
	// CSSFile, when set, is linked from every page and seeded from the
	// embedded default if absent. An existing file is never overwritten.
	CSSFile string
	Now     func() time.Time
}

type pageData struct {
	HumanDate string
	Timestamp string
	CSS       string
	Yesterday string
	NextDay   template.HTML
	Strips    []stripView
}

type stripView struct {
	Key      string
	Name     string
	Artist   string
	Homepage string
	OnHold   bool
	Err      string
	Items    []itemView
}

type itemView struct {
	Name           string
	IsImage        bool
	Href           string
	Text           string
	UnchangedSince string
}

// nextDayMarker survives html/template (which strips literal comments) so
// the following day's run can splice in a forward link.
const nextDayMarker = "<!--nextday-->"

var pageTmpl = template.Must(template.New("daily").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Daily Strips - {{.HumanDate}}</title>
{{if .CSS}}<link rel="stylesheet" type="text/css" href="{{.CSS}}">
{{end}}</head>
<body>
<h1>Daily Strips - {{.HumanDate}}</h1>
<p class="nav">{{if .Yesterday}}<a href="{{.Yesterday}}">Previous day</a>{{end}}{{.NextDay}}</p>
{{range .Strips}}<div class="strip strip_{{.Key}}">
<h2><a href="{{.Homepage}}">{{.Name}}</a>{{if .Artist}} <span class="artist">by {{.Artist}}</span>{{end}}{{if .OnHold}} <span class="onhold">(on hold)</span>{{end}}</h2>
{{if .Err}}<p class="error">{{.Err}}</p>
{{else}}{{range .Items}}{{if .IsImage}}<p class="art"><img src="{{.Href}}" alt="{{.Name}}"></p>
{{else}}<p class="text">{{.Text}}</p>
{{end}}{{if .UnchangedSince}}<p class="unchanged">Unchanged since {{.UnchangedSince}}</p>
{{end}}{{end}}{{end}}</div>
{{end}}<p class="footer">Generated {{.Timestamp}}</p>
</body>
</html>
`))

// WritePage renders the daily page for date from the run outcomes, points
// index.html at it, and links yesterday's page in both directions. It
// returns the daily page path.
func (r *Renderer) WritePage(date dateutil.ResolvedDate, outcomes []aggregate.Outcome) (string, error) {
	if err := r.ensureCSS(); err != nil {
		return "", err
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	data := pageData{
		HumanDate: date.Human(),
		Timestamp: now().Format(time.ANSIC),
		CSS:       r.CSSFile,
		NextDay:   template.HTML(nextDayMarker),
	}

	prevName := PageName(date.AddDays(-1))
	prevPath := filepath.Join(r.Dir, prevName)
	if _, err := os.Stat(prevPath); err == nil {
		data.Yesterday = prevName
	}

	for _, out := range outcomes {
		data.Strips = append(data.Strips, viewFor(out))
	}

	var page strings.Builder
	if err := pageTmpl.Execute(&page, data); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	curName := PageName(date)
	curPath := filepath.Join(r.Dir, curName)
	if err := writeFileAtomic(curPath, []byte(page.String())); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	// index.html always resolves to the newest page; replaced whole, so a
	// reader never sees a partial index.
	if err := writeFileAtomic(filepath.Join(r.Dir, "index.html"), []byte(page.String())); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	if data.Yesterday != "" {
		if err := patchNextDay(prevPath, curName); err != nil {
			return "", fmt.Errorf("render: %w", err)
		}
	}

	return curPath, nil
}

func viewFor(out aggregate.Outcome) stripView {
	v := stripView{
		Key:      out.Key,
		Name:     out.Strip.Name,
		Artist:   out.Strip.Artist,
		Homepage: out.Strip.Homepage,
		OnHold:   out.Strip.OnHold,
	}
	if out.Err != nil {
		v.Err = out.Err.Error()
		return v
	}
	if out.Entry == nil {
		return v
	}

	for _, a := range out.Entry.Artifacts {
		item := itemView{
			Name:           a.Name,
			UnchangedSince: a.UnchangedSince,
		}
		if a.Kind == strips.KindImage.String() {
			item.IsImage = true
			item.Href = url.PathEscape(out.Key) + "/" + a.File
		} else {
			item.Text = a.Text
		}
		v.Items = append(v.Items, item)
	}
	return v
}

// patchNextDay replaces the marker left in yesterday's page with a link
// to today's. Idempotent: once patched, the marker is gone.
func patchNextDay(prevPath, curName string) error {
	b, err := os.ReadFile(prevPath)
	if err != nil {
		return err
	}
	content := string(b)
	if !strings.Contains(content, nextDayMarker) {
		return nil
	}
	link := fmt.Sprintf(` | <a href="%s">Next day</a>`, curName)
	content = strings.Replace(content, nextDayMarker, link, 1)
	return writeFileAtomic(prevPath, []byte(content))
}

func (r *Renderer) ensureCSS() error {
	if r.CSSFile == "" {
		return nil
	}
	dst := filepath.Join(r.Dir, r.CSSFile)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	return os.WriteFile(dst, defaultCSS, 0644)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
