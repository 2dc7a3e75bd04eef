package views

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templates embed.FS

// Layout wraps every page.
const Layout = "layouts/main"

// New returns the HTML engine fiber renders pages with. Templates are
// compiled into the binary.
func New() *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(fmt.Sprintf("views: %v", err))
	}

	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("humanSize", HumanSize)
	engine.AddFunc("pathEscape", url.PathEscape)
	return engine
}

// HumanSize formats a byte count for listings.
func HumanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
