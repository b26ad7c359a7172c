package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// File is a collection of resolved logical requests.
type File struct {
	Path     string         `yaml:"-"`
	Name     string         `yaml:"name"`
	Requests []*FileRequest `yaml:"requests" validate:"required,min=1,dive"`
}

// FileRequest is a logical request plus the values to capture from its
// final response.
type FileRequest struct {
	http.Request `yaml:",inline"`
	Captures     []capture.Capture `yaml:"captures" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads and validates a YAML request file. Relative multipart paths
// resolve against the file's directory.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	file, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.Path = path
	baseDir := filepath.Dir(path)
	for _, req := range file.Requests {
		if req.BaseDir == "" {
			req.BaseDir = baseDir
		}
	}
	return file, nil
}

// ParseFile decodes a request file. Unknown keys are rejected.
func ParseFile(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty request file")
		}
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid request file: %w", err)
	}
	for i, req := range file.Requests {
		if req.Name == "" {
			req.Name = fmt.Sprintf("request %d", i+1)
		}
	}
	return &file, nil
}
