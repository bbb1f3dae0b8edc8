package validation

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const megabyte = 1024 * 1024

// ArtifactRule describes the allow-list and size ceiling for an uploaded file.
type ArtifactRule struct {
	Field       string
	Required    bool
	Extensions  []string
	MIMETypes   []string
	MaxBytes    int64
	MissingMsg  string
	TypeMsg     string
	TooLargeMsg string
}

// ResumeRule: PDF/DOC/DOCX, at most 5 MB.
var ResumeRule = ArtifactRule{
	Field:      "resume",
	Required:   true,
	Extensions: []string{".pdf", ".doc", ".docx"},
	MIMETypes: []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	},
	MaxBytes:    5 * megabyte,
	MissingMsg:  "Please upload your resume",
	TypeMsg:     "Resume must be a PDF, DOC, or DOCX file",
	TooLargeMsg: "Resume must be 5MB or smaller",
}

// LogoRule: PNG/JPG/SVG, at most 2 MB, optional.
var LogoRule = ArtifactRule{
	Field:       "logo",
	Required:    false,
	Extensions:  []string{".png", ".jpg", ".jpeg", ".svg"},
	MIMETypes:   []string{"image/png", "image/jpeg", "image/svg+xml"},
	MaxBytes:    2 * megabyte,
	MissingMsg:  "Please upload your company logo",
	TypeMsg:     "Logo must be a PNG, JPG, or SVG file",
	TooLargeMsg: "Logo must be 2MB or smaller",
}

// Magic byte signatures for binary formats. SVG is text and has none.
var magicBytes = map[string][][]byte{
	".jpg":  {{0xFF, 0xD8, 0xFF}},
	".jpeg": {{0xFF, 0xD8, 0xFF}},
	".png":  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	".pdf":  {{0x25, 0x50, 0x44, 0x46}},                         // %PDF
	".doc":  {{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}}, // OLE Compound Document
	".docx": {{0x50, 0x4B, 0x03, 0x04}},                         // ZIP (PK..)
}

// CheckArtifact validates file metadata: presence, extension, declared MIME type
// and size. It returns the user-facing message of the first failure, or "".
func CheckArtifact(filename, declaredMIME string, size int64, present bool, rule ArtifactRule) string {
	if !present {
		if rule.Required {
			return rule.MissingMsg
		}
		return ""
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !contains(rule.Extensions, ext) {
		return rule.TypeMsg
	}
	if declaredMIME != "" && !contains(rule.MIMETypes, normalizeMIME(declaredMIME)) {
		return rule.TypeMsg
	}
	if size <= 0 || size > rule.MaxBytes {
		if size <= 0 {
			return rule.MissingMsg
		}
		return rule.TooLargeMsg
	}
	return ""
}

// InspectContent verifies the bytes really are what the filename claims:
// magic bytes for binary formats and a sniffed MIME type on the allow-list.
// It returns the sniffed MIME type and a failure message ("" when valid).
func InspectContent(filename string, data []byte, rule ArtifactRule) (string, string) {
	if msg := CheckArtifact(filename, "", int64(len(data)), len(data) > 0, rule); msg != "" {
		return "", msg
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !validateMagicBytes(ext, data) {
		return "", rule.TypeMsg
	}

	detected := mimetype.Detect(data)
	for _, allowed := range rule.MIMETypes {
		if detected.Is(allowed) {
			return allowed, ""
		}
	}
	// Legacy .doc files are sniffed as generic OLE storage
	if ext == ".doc" && detected.Is("application/x-ole-storage") {
		return "application/msword", ""
	}
	return "", rule.TypeMsg
}

// validateMagicBytes checks if file content starts with expected magic bytes
func validateMagicBytes(ext string, data []byte) bool {
	signatures, ok := magicBytes[ext]
	if !ok {
		return true
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "image/jpg" {
		return "image/jpeg"
	}
	return m
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
