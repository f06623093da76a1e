package page

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mediaforge/internal/asset"
	"mediaforge/internal/config"
	"mediaforge/internal/fileutil"
	"mediaforge/internal/logging"
	"mediaforge/internal/services"
)

const subdir = "html"

//go:embed embed_page.html.tmpl
var embeddedTemplate string

// Input carries everything the renderer needs for one asset. Derivative paths
// are the store-relative paths recorded in the outputs manifest.
type Input struct {
	BaseName    string
	Description string
	Type        asset.MediaType
	ImageFiles  []asset.ImageFile
	VideoFiles  []asset.VideoFile
	// RawURLPrefix is prepended to derivative paths to form absolute content
	// URLs, typically
	// https://raw.githubusercontent.com/<repo>/<ref>/<content dir>. When
	// empty the page references derivatives relative to its own directory.
	RawURLPrefix string
}

// Renderer writes the HTML embed page for an asset. Rendering is pure
// templating over the derivative manifest; it never touches the network.
type Renderer struct {
	root     string
	template *template.Template
	logger   *slog.Logger
}

// New constructs a renderer writing under root/html. A template path in the
// configuration overrides the built-in page template.
func New(cfg config.Page, root string, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	tmpl := template.New("embed_page")
	var err error
	if cfg.TemplatePath != "" {
		data, readErr := os.ReadFile(cfg.TemplatePath)
		if readErr != nil {
			return nil, fmt.Errorf("read page template: %w", readErr)
		}
		tmpl, err = tmpl.Parse(string(data))
	} else {
		tmpl, err = tmpl.Parse(embeddedTemplate)
	}
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	return &Renderer{
		root:     root,
		template: tmpl,
		logger:   logging.NewComponentLogger(logger, "page"),
	}, nil
}

type imageSource struct {
	Type   string
	Srcset string
}

type videoSource struct {
	Src  string
	Type string
}

type templateData struct {
	Title        string
	Description  string
	IsVideo      bool
	ImageSources []imageSource
	FallbackSrc  string
	VideoSources []videoSource
}

// Render writes <root>/html/<base>.html and returns the store-relative page
// path. Derivative URLs are ordered smallest class first so srcset parses in
// ascending width order.
func (r *Renderer) Render(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrTimeout, "page_generation", "render", "canceled", err)
	}
	if strings.TrimSpace(in.BaseName) == "" {
		return "", services.Wrap(services.ErrValidation, "page_generation", "render", "base name required", nil)
	}
	if err := os.MkdirAll(filepath.Join(r.root, subdir), 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "page_generation", "ensure output dir", "", err)
	}

	data := templateData{
		Title:       in.BaseName,
		Description: in.Description,
		IsVideo:     in.Type == asset.TypeVideo,
	}
	if data.IsVideo {
		data.VideoSources = r.videoSources(in)
	} else {
		data.ImageSources = r.imageSources(in)
		data.FallbackSrc = r.fallbackSource(in)
	}

	var buf bytes.Buffer
	if err := r.template.Execute(&buf, data); err != nil {
		return "", services.Wrap(services.ErrFatal, "page_generation", "render", "", err)
	}

	relative := filepath.Join(subdir, in.BaseName+".html")
	absolute := filepath.Join(r.root, relative)
	if err := fileutil.WriteFileAtomic(absolute, buf.Bytes(), 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "page_generation", "write page", absolute, err)
	}

	r.logger.Debug("embed page written", logging.String("path", absolute))
	return relative, nil
}

// imageSources builds one srcset per encoding, WebP first so capable browsers
// prefer it.
func (r *Renderer) imageSources(in Input) []imageSource {
	byFormat := map[string][]asset.ImageFile{}
	for _, file := range in.ImageFiles {
		byFormat[file.Format] = append(byFormat[file.Format], file)
	}

	var sources []imageSource
	for _, format := range []string{"webp", "jpg"} {
		files := byFormat[format]
		if len(files) == 0 {
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Width < files[j].Width })
		entries := make([]string, 0, len(files))
		for _, file := range files {
			entries = append(entries, fmt.Sprintf("%s %dw", r.contentURL(in, file.Path), file.Width))
		}
		sources = append(sources, imageSource{
			Type:   mimeForImageFormat(format),
			Srcset: strings.Join(entries, ", "),
		})
	}
	return sources
}

// fallbackSource is the plain <img> src: the smallest JPEG in the manifest.
func (r *Renderer) fallbackSource(in Input) string {
	var smallest *asset.ImageFile
	for i, file := range in.ImageFiles {
		if file.Format != "jpg" {
			continue
		}
		if smallest == nil || file.Width < smallest.Width {
			smallest = &in.ImageFiles[i]
		}
	}
	if smallest == nil {
		return ""
	}
	return r.contentURL(in, smallest.Path)
}

func (r *Renderer) videoSources(in Input) []videoSource {
	files := make([]asset.VideoFile, len(in.VideoFiles))
	copy(files, in.VideoFiles)
	// Largest class first; within a class the browser picks the first source
	// it can play, so WebM precedes MP4.
	sort.Slice(files, func(i, j int) bool {
		if files[i].Height != files[j].Height {
			return files[i].Height > files[j].Height
		}
		return files[i].Format == "webm"
	})

	sources := make([]videoSource, 0, len(files))
	for _, file := range files {
		sources = append(sources, videoSource{
			Src:  r.contentURL(in, file.Path),
			Type: mimeForVideoFormat(file.Format),
		})
	}
	return sources
}

// contentURL joins the raw URL prefix with a store-relative derivative path.
// Without a prefix the page links sibling directories relative to html/.
func (r *Renderer) contentURL(in Input, relativePath string) string {
	relativePath = filepath.ToSlash(relativePath)
	if in.RawURLPrefix == "" {
		return "../" + relativePath
	}
	return strings.TrimRight(in.RawURLPrefix, "/") + "/" + relativePath
}

func mimeForImageFormat(format string) string {
	switch format {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return ""
	}
}

func mimeForVideoFormat(format string) string {
	switch format {
	case "webm":
		return "video/webm"
	case "mp4":
		return "video/mp4"
	default:
		return ""
	}
}
