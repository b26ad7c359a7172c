package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// MultipartFieldType distinguishes text parts from file parts.
type MultipartFieldType string

const (
	MultipartText MultipartFieldType = "text"
	MultipartFile MultipartFieldType = "file"
)

// MultipartField is one part of a multipart/form-data body.
type MultipartField struct {
	Type        MultipartFieldType `yaml:"type"`
	Name        string             `yaml:"name"`
	Value       string             `yaml:"value"`
	Path        string             `yaml:"path"`
	ContentType string             `yaml:"contentType"`
	Enabled     bool               `yaml:"enabled"`
}

// multipartPayload streams a multipart body. Nothing is read until Open, and
// every Open re-reads the files, so retries get an identical body.
type multipartPayload struct {
	fields   []MultipartField
	baseDir  string
	boundary string
}

func newMultipartPayload(fields []MultipartField, baseDir string) (*multipartPayload, error) {
	for _, f := range fields {
		if f.Type != MultipartFile {
			continue
		}
		if _, err := resolveFieldPath(f.Path, baseDir); err != nil {
			return nil, err
		}
	}
	// Borrow a random boundary; each Open writes with the same one so the
	// content-type header stays valid across attempts.
	boundary := multipart.NewWriter(io.Discard).Boundary()
	return &multipartPayload{fields: fields, baseDir: baseDir, boundary: boundary}, nil
}

func (p *multipartPayload) Kind() PayloadKind    { return PayloadMultipart }
func (p *multipartPayload) ContentLength() int64 { return -1 }
func (p *multipartPayload) Reopenable() bool     { return true }

func (p *multipartPayload) ContentType() string {
	return "multipart/form-data; boundary=" + p.boundary
}

func (p *multipartPayload) Open() (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(p.write(pw))
	}()
	return pr, nil
}

func (p *multipartPayload) write(w io.Writer) error {
	writer := multipart.NewWriter(w)
	if err := writer.SetBoundary(p.boundary); err != nil {
		return err
	}

	for _, field := range p.fields {
		if field.Type == MultipartFile {
			if err := p.writeFile(writer, field); err != nil {
				return err
			}
			continue
		}
		if field.ContentType != "" {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(field.Name)))
			h.Set("Content-Type", field.ContentType)
			part, err := writer.CreatePart(h)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(part, field.Value); err != nil {
				return err
			}
			continue
		}
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return err
		}
	}

	return writer.Close()
}

func (p *multipartPayload) writeFile(writer *multipart.Writer, field MultipartField) error {
	filePath, err := resolveFieldPath(field.Path, p.baseDir)
	if err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var part io.Writer
	if field.ContentType != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(field.Name), escapeQuotes(filepath.Base(filePath))))
		h.Set("Content-Type", field.ContentType)
		part, err = writer.CreatePart(h)
	} else {
		part, err = writer.CreateFormFile(field.Name, filepath.Base(filePath))
	}
	if err != nil {
		return err
	}

	_, err = io.Copy(part, file)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func resolveFieldPath(path, baseDir string) (string, error) {
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	if err := validatePathWithinBase(path, baseDir); err != nil {
		return "", err
	}
	return path, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
