// Package jar inspects the structure of ZIP and JAR archives straight from
// their bytes: entries, manifest attributes, class names and packages.
package jar

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcncl/convertkit/internal/errors"
)

// EntryType classifies an archive entry by its name.
type EntryType string

const (
	EntryClass    EntryType = "class"
	EntryResource EntryType = "resource"
	EntryManifest EntryType = "manifest"
	EntryConfig   EntryType = "config"
	EntryOther    EntryType = "other"
)

// JarType is the inferred role of the archive.
type JarType string

const (
	JarExecutable JarType = "executable"
	JarWebApp     JarType = "web-app"
	JarLibrary    JarType = "library"
)

// Mode records how the entry list was obtained.
type Mode string

const (
	ModeCentralDirectory Mode = "central-directory"
	ModeFallback         Mode = "fallback"
)

// ManifestPath is the conventional manifest location.
const ManifestPath = "META-INF/MANIFEST.MF"

// FileEntry is one file or directory in the archive. Size is the
// uncompressed size, zero for entries found by the fallback scan.
type FileEntry struct {
	Name        string    `json:"name"`
	IsDirectory bool      `json:"isDirectory"`
	Size        int64     `json:"size"`
	Type        EntryType `json:"type"`
}

// Manifest holds META-INF/MANIFEST.MF attributes.
type Manifest struct {
	Attributes   map[string]string `json:"attributes"`
	MainClass    string            `json:"mainClass,omitempty"`
	Version      string            `json:"version,omitempty"`
	CreatedBy    string            `json:"createdBy,omitempty"`
	BuildJDK     string            `json:"buildJdk,omitempty"`
	Compressed   bool              `json:"compressed,omitempty"`
	ManifestSize int64             `json:"size"`
}

// JavaClass names a class file. Fields and methods are never populated
// because class files are not decoded.
type JavaClass struct {
	Name     string   `json:"name"`
	Package  string   `json:"package"`
	FullName string   `json:"fullName"`
	Fields   []string `json:"fields"`
	Methods  []string `json:"methods"`
}

// Structure summarises the archive.
type Structure struct {
	TotalFiles     int      `json:"totalFiles"`
	TotalClasses   int      `json:"totalClasses"`
	TotalResources int      `json:"totalResources"`
	Packages       []string `json:"packages"`
	Dependencies   []string `json:"dependencies"`
}

// Metadata describes one analysis run.
type Metadata struct {
	AnalysisID  string    `json:"analysisId"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	ExtractedAt time.Time `json:"extractedAt"`
	JarType     JarType   `json:"jarType"`
	Mode        Mode      `json:"mode"`
}

// Analysis is the result of inspecting one archive.
type Analysis struct {
	Manifest  *Manifest   `json:"manifest,omitempty"`
	Classes   []JavaClass `json:"classes"`
	Resources []FileEntry `json:"resources"`
	Structure Structure   `json:"structure"`
	Metadata  Metadata    `json:"metadata"`
}

// Analyzer inspects archives. The zero value is not usable; use NewAnalyzer.
type Analyzer struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger used to report fallback activation
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the time source for Metadata.ExtractedAt
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer returns an analyzer that logs to slog.Default.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze inspects buf with a default analyzer.
func Analyze(buf []byte, fileName string) (*Analysis, error) {
	return NewAnalyzer().Analyze(buf, fileName)
}

// Analyze reads the central directory of buf. When the directory cannot be
// located or walked, entries are recovered from a text scan instead and
// Metadata.Mode is ModeFallback. Only an empty or undecodable buffer is an
// error.
func (a *Analyzer) Analyze(buf []byte, fileName string) (*Analysis, error) {
	if len(buf) == 0 {
		return nil, errors.NewIOError("archive buffer is empty", errors.ErrUnreadable)
	}

	mode := ModeCentralDirectory
	entries, manifest, err := a.centralDirectory(buf)
	if err != nil {
		a.logger.Warn("central directory unreadable, scanning archive text instead",
			"file", fileName, "size", len(buf), "error", err)
		mode = ModeFallback
		entries, manifest, err = scanText(buf)
		if err != nil {
			return nil, err
		}
	}

	analysis := build(entries, manifest)
	analysis.Metadata = Metadata{
		AnalysisID:  uuid.NewString(),
		FileName:    fileName,
		FileSize:    int64(len(buf)),
		ExtractedAt: a.now().UTC(),
		JarType:     inferType(entries, manifest),
		Mode:        mode,
	}
	a.logger.Debug("analyzed archive", "file", fileName, "entries", len(entries),
		"classes", len(analysis.Classes), "mode", mode, "jar_type", analysis.Metadata.JarType)
	return analysis, nil
}

// centralDirectory converts any panic in the walk into an error so the
// caller can fall back.
func (a *Analyzer) centralDirectory(buf []byte) (entries []FileEntry, manifest *Manifest, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewStructuralError(fmt.Sprintf("central directory walk failed: %v", r), nil)
		}
	}()

	dir, err := findEOCD(buf)
	if err != nil {
		return nil, nil, err
	}
	records, err := readCentralDirectory(buf, dir)
	if err != nil {
		return nil, nil, err
	}

	entries = make([]FileEntry, 0, len(records))
	for _, r := range records {
		entry := FileEntry{
			Name:        r.name,
			IsDirectory: strings.HasSuffix(r.name, "/"),
			Size:        int64(r.size),
			Type:        Classify(r.name),
		}
		entries = append(entries, entry)

		if entry.Type != EntryManifest {
			continue
		}
		if content, ok := storedContent(buf, r); ok {
			manifest = ParseManifest(string(content))
		} else {
			manifest = &Manifest{Attributes: map[string]string{}, Compressed: true}
		}
		manifest.ManifestSize = int64(r.size)
	}
	return entries, manifest, nil
}

// AnalyzeFile reads path and analyzes it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, filePath string) (*Analysis, error) {
	if filePath == "" {
		return nil, errors.NewInputError("no file path provided", errors.ErrInvalidFilePath)
	}
	f, err := os.Open(filePath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewInputError(fmt.Sprintf("file not found: %s", filePath), errors.ErrFileNotFound)
		}
		return nil, errors.NewIOError(fmt.Sprintf("failed to open %s", filePath), err)
	}
	defer f.Close()
	return a.AnalyzeReader(ctx, f, path.Base(strings.ReplaceAll(filePath, "\\", "/")))
}

const readChunk = 64 << 10

// AnalyzeReader buffers r fully, checking ctx between reads, then analyzes
// the buffer.
func (a *Analyzer) AnalyzeReader(ctx context.Context, r io.Reader, fileName string) (*Analysis, error) {
	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewIOError("archive read cancelled", err)
		}
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewIOError("failed to read archive", err)
		}
	}
	return a.Analyze(buf, fileName)
}

var (
	configExtensions   = map[string]bool{".xml": true, ".properties": true, ".json": true, ".yml": true, ".yaml": true, ".config": true, ".conf": true}
	resourceExtensions = map[string]bool{".txt": true, ".md": true, ".license": true, ".notice": true}
)

// Classify maps an entry name to its EntryType.
func Classify(name string) EntryType {
	lower := strings.ToLower(name)
	ext := path.Ext(lower)
	switch {
	case strings.EqualFold(name, ManifestPath):
		return EntryManifest
	case ext == ".class":
		return EntryClass
	case configExtensions[ext]:
		return EntryConfig
	case strings.HasPrefix(name, "META-INF/") || resourceExtensions[ext]:
		return EntryResource
	default:
		return EntryOther
	}
}

// ClassFromEntry splits a class file path into package and simple name.
func ClassFromEntry(name string) JavaClass {
	full := strings.ReplaceAll(strings.TrimSuffix(name, ".class"), "/", ".")
	pkg, simple := "", full
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		pkg, simple = full[:i], full[i+1:]
	}
	return JavaClass{Name: simple, Package: pkg, FullName: full, Fields: []string{}, Methods: []string{}}
}

func build(entries []FileEntry, manifest *Manifest) *Analysis {
	a := &Analysis{
		Manifest:  manifest,
		Classes:   []JavaClass{},
		Resources: []FileEntry{},
	}

	packages := map[string]bool{}
	deps := map[string]bool{}
	a.Structure.Packages = []string{}
	a.Structure.Dependencies = []string{}

	for _, e := range entries {
		if e.IsDirectory {
			continue
		}
		a.Structure.TotalFiles++

		if e.Type == EntryClass {
			class := ClassFromEntry(e.Name)
			a.Classes = append(a.Classes, class)
			if class.Package != "" && !packages[class.Package] {
				packages[class.Package] = true
				a.Structure.Packages = append(a.Structure.Packages, class.Package)
			}
		} else {
			a.Resources = append(a.Resources, e)
		}

		if dep, ok := dependency(e.Name); ok && !deps[dep] {
			deps[dep] = true
			a.Structure.Dependencies = append(a.Structure.Dependencies, dep)
		}
	}

	sort.Strings(a.Structure.Packages)
	a.Structure.TotalClasses = len(a.Classes)
	a.Structure.TotalResources = len(a.Resources)
	return a
}

// dependency returns the file name of an entry stored under a lib/ or
// dependency/ directory.
func dependency(name string) (string, bool) {
	segments := strings.Split(name, "/")
	for i, seg := range segments[:len(segments)-1] {
		if seg == "lib" || seg == "dependency" {
			base := segments[len(segments)-1]
			if base != "" && i < len(segments)-1 {
				return base, true
			}
		}
	}
	return "", false
}

func inferType(entries []FileEntry, manifest *Manifest) JarType {
	if manifest != nil && manifest.MainClass != "" {
		return JarExecutable
	}
	for _, e := range entries {
		if e.Name == "WEB-INF/web.xml" {
			return JarWebApp
		}
	}
	for _, e := range entries {
		if strings.Contains(e.Name, "Main.class") {
			return JarExecutable
		}
	}
	return JarLibrary
}
