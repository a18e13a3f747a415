package utils

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonDigitPattern = regexp.MustCompile(`\D`)
	unsafeFileChars = regexp.MustCompile(`[^\w\-.]`)
	unsafeFolder    = regexp.MustCompile(`[^\w/\-]`)
)

// AllowedExtensions lists the file extensions accepted for upload.
var AllowedExtensions = map[string]bool{
	"txt": true, "pdf": true, "png": true, "jpg": true, "jpeg": true,
	"gif": true, "doc": true, "docx": true, "zip": true, "rar": true,
}

// ImageExtensions is the subset accepted for avatars, identity documents and signatures.
var ImageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidPhone accepts numbers with 8 to 15 digits once punctuation is stripped.
func ValidPhone(phone string) bool {
	digits := nonDigitPattern.ReplaceAllString(phone, "")
	return len(digits) >= 8 && len(digits) <= 15
}

// PasswordProblem returns a human readable reason when password is too weak, or "".
func PasswordProblem(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters long"
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return "Password must contain at least one uppercase letter"
	}
	if !lower {
		return "Password must contain at least one lowercase letter"
	}
	if !digit {
		return "Password must contain at least one number"
	}
	return ""
}

// FileExtension returns the lowercased extension without the dot.
func FileExtension(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func AllowedFile(name string) bool {
	return AllowedExtensions[FileExtension(name)]
}

// SanitizeFilename strips directories and replaces unsafe characters.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = unsafeFileChars.ReplaceAllString(name, "_")
	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:255-len(ext)] + ext
	}
	return name
}

// SanitizeFolder normalizes a storage folder, rejecting traversal.
func SanitizeFolder(folder string) (string, bool) {
	folder = strings.Trim(strings.ReplaceAll(folder, "\\", "/"), "/")
	if folder == "" {
		return "", false
	}
	for _, part := range strings.Split(folder, "/") {
		if part == "" || part == "." || part == ".." {
			return "", false
		}
	}
	return unsafeFolder.ReplaceAllString(folder, "_"), true
}
