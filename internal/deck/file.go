package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"deckhand/internal/domain"
)

// FileVersion is the deck file format version written by exports.
const FileVersion = 1

// File is the portable on-disk form of a presentation. Only authorable
// content travels; pipeline state stays server-side and is rebuilt on import.
type File struct {
	Version int         `json:"version" yaml:"version"`
	Name    string      `json:"name" yaml:"name"`
	Topic   string      `json:"topic,omitempty" yaml:"topic,omitempty"`
	Author  string      `json:"author,omitempty" yaml:"author,omitempty"`
	Slides  []FileSlide `json:"slides" yaml:"slides"`
}

// FileSlide carries one slide's authorable fields. Order is positional.
type FileSlide struct {
	Title       string   `json:"title" yaml:"title"`
	Content     []string `json:"content,omitempty" yaml:"content,omitempty"`
	Notes       string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	ImagePrompt string   `json:"image_prompt,omitempty" yaml:"image_prompt,omitempty"`
}

// FromPresentation converts a presentation into its file form.
func FromPresentation(p *domain.Presentation) *File {
	f := &File{
		Version: FileVersion,
		Name:    p.Name,
		Topic:   p.Topic,
		Author:  p.Author,
		Slides:  make([]FileSlide, 0, len(p.Slides)),
	}
	for _, s := range p.Slides {
		f.Slides = append(f.Slides, FileSlide{
			Title:       s.Title,
			Content:     append([]string(nil), s.Content...),
			Notes:       s.Notes,
			ImagePrompt: s.ImagePrompt,
		})
	}
	return f
}

// DomainSlides converts the file's slides back into domain slides with fresh
// client-generated ids and contiguous orders.
func (f *File) DomainSlides() []domain.Slide {
	slides := make([]domain.Slide, 0, len(f.Slides))
	for i, s := range f.Slides {
		slides = append(slides, domain.Slide{
			ID:          uuid.NewString(),
			Title:       s.Title,
			Content:     append(domain.SlideContent(nil), s.Content...),
			Notes:       s.Notes,
			ImagePrompt: s.ImagePrompt,
			Order:       i,
		})
	}
	return slides
}

// Validate checks the fields an import depends on.
func (f *File) Validate() error {
	if f.Version <= 0 {
		return errors.New("deck: missing file version")
	}
	if f.Version > FileVersion {
		return fmt.Errorf("deck: unsupported file version %d", f.Version)
	}
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("deck: deck name is required")
	}
	return nil
}

// Format identifies a deck file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("deck: unsupported file extension %q (use .yaml, .yml, or .json)", filepath.Ext(path))
	}
}

// Marshal encodes the file in the given format.
func Marshal(f *File, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("deck: encode json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("deck: encode yaml: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("deck: unknown format %q", format)
	}
}

// Unmarshal decodes a deck file and validates it.
func Unmarshal(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("deck: decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("deck: decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("deck: unknown format %q", format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// WriteFile exports a deck to disk, picking the encoding from the extension.
func WriteFile(path string, f *File) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(f, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("deck: write file: %w", err)
	}
	return nil
}

// ReadFile imports a deck from disk, picking the encoding from the extension.
func ReadFile(path string) (*File, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deck: read file: %w", err)
	}
	return Unmarshal(data, format)
}

// Slug turns a presentation name into a filesystem and URL safe file stem:
// lowercased, runs of non-alphanumerics collapsed to single dashes.
func Slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "presentation"
	}
	return out
}
