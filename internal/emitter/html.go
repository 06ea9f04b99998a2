package emitter

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/gvprof/gvprof/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed graphs.html
var graphsTemplate string

const chartTemplate = `    <div class="chart">
      <h3 class="chart-header">%s
        <button id="save%d">Save as Image</button>
        <div id="svgdataurl%d"></div>
      </h3>
      <svg id="chart%d"></svg>
      <canvas id="canvas%d" style="display:none"></canvas>
      <script>
        constructChart("lineChart", %d, "%s", 0.00);
      </script>
    </div>
`

// HTMLName returns the dashboard file name for a format.
func HTMLName(format string) string {
	if format == config.FormatClient {
		return "gvp-client-graphs.html"
	}
	return "gvp-graphs.html"
}

func pageTitle(format string) string {
	if format == config.FormatClient {
		return "summary profile of application activity on one client"
	}
	return "summary profile of Gluster volume activity"
}

func renderHTML(format string, tables []Table) (string, error) {
	tmpl := strings.TrimSpace(graphsTemplate)
	if tmpl == "" {
		return "", errors.New("graph template is empty")
	}
	var charts strings.Builder
	for i, t := range tables {
		n := i + 1
		fmt.Fprintf(&charts, chartTemplate, html.EscapeString(t.Title), n, n, n, n, n, t.Name)
	}
	body := strings.ReplaceAll(tmpl, "{{TITLE}}", html.EscapeString(pageTitle(format)))
	body = strings.ReplaceAll(body, "{{CHARTS}}", strings.TrimRight(charts.String(), "\n"))
	return body + "\n", nil
}

func writeHTML(dir, format string, tables []Table) (string, error) {
	body, err := renderHTML(format, tables)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, HTMLName(format))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// linkStatic points dir/static at the charting assets. A missing target
// only warns: the CSVs are still usable without the graphs.
func linkStatic(dir, staticDir string) {
	target := staticDir
	if !filepath.IsAbs(target) {
		target = filepath.Join("..", staticDir)
	}
	link := filepath.Join(dir, "static")
	if err := os.Symlink(target, link); err != nil {
		zap.L().Warn("could not link chart assets",
			zap.String("namespace", "emitter"), zap.String("link", link), zap.Error(err))
		return
	}
	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(dir, target)
	}
	if _, err := os.Stat(resolved); err != nil {
		zap.L().Warn("chart assets not found, graphs will not render",
			zap.String("namespace", "emitter"), zap.String("static", resolved))
	}
}
