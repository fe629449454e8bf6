package apiclient

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

// File is an attachment sent in a multipart form.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Form accumulates multipart fields in insertion order.
type Form struct {
	fields [][2]string
	files  []File
}

// Set adds a text field. Empty values are sent as-is; callers skip fields
// they do not want to patch.
func (f *Form) Set(key, value string) *Form {
	f.fields = append(f.fields, [2]string{key, value})
	return f
}

// Attach adds a file part.
func (f *Form) Attach(file File) *Form {
	f.files = append(f.files, file)
	return f
}

// Has reports whether key was set.
func (f *Form) Has(key string) bool {
	for _, kv := range f.fields {
		if kv[0] == key {
			return true
		}
	}
	return false
}

// Len is the number of parts.
func (f *Form) Len() int { return len(f.fields) + len(f.files) }

func (f *Form) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	for _, file := range f.files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, filepath.Base(file.Name)))
		ct := strings.TrimSpace(file.ContentType)
		if ct == "" {
			ct = "application/octet-stream"
		}
		header.Set("Content-Type", ct)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
