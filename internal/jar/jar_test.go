package jar

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/convertkit/internal/errors"
)

type fixture struct {
	name    string
	content string
	deflate bool
}

func buildJar(t *testing.T, comment string, files ...fixture) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Store
		if f.deflate {
			method = zip.Deflate
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: method})
		require.NoError(t, err)
		if f.content != "" {
			_, err = fw.Write([]byte(f.content))
			require.NoError(t, err)
		}
	}
	if comment != "" {
		require.NoError(t, w.SetComment(comment))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

var libraryFiles = []fixture{
	{name: "com/"},
	{name: "com/example/"},
	{name: "com/example/App.class", content: "\xca\xfe\xba\xbe"},
	{name: "com/example/util/Strings.class", content: "\xca\xfe\xba\xbe"},
	{name: "config.properties", content: "greeting=hi\n"},
	{name: "README.md", content: "docs"},
	{name: "META-INF/LICENSE", content: "MIT"},
}

func quietAnalyzer(logs *bytes.Buffer) *Analyzer {
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewAnalyzer(WithLogger(logger), WithClock(func() time.Time { return fixed }))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		expected EntryType
	}{
		{"META-INF/MANIFEST.MF", EntryManifest},
		{"com/example/App.class", EntryClass},
		{"application.yml", EntryConfig},
		{"WEB-INF/web.xml", EntryConfig},
		{"logback.CONF", EntryConfig},
		{"META-INF/LICENSE", EntryResource},
		{"NOTICE.txt", EntryResource},
		{"docs/guide.md", EntryResource},
		{"images/logo.png", EntryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.name))
		})
	}
}

func TestClassFromEntry(t *testing.T) {
	c := ClassFromEntry("com/example/util/Strings.class")
	assert.Equal(t, "Strings", c.Name)
	assert.Equal(t, "com.example.util", c.Package)
	assert.Equal(t, "com.example.util.Strings", c.FullName)
	assert.Empty(t, c.Fields)
	assert.Empty(t, c.Methods)

	root := ClassFromEntry("Main.class")
	assert.Equal(t, "", root.Package)
	assert.Equal(t, "Main", root.FullName)
}

func TestParseManifest(t *testing.T) {
	text := "Manifest-Version: 1.0\r\n" +
		"Class-Path: lib/alpha.jar lib/be\r\n" +
		" ta.jar\r\n" +
		"Implementation-Version: \r\n" +
		"Specification-Version: 2.1\r\n" +
		"Created-By: Maven\r\n" +
		"Build-Jdk: 17.0.2\r\n" +
		"\r\n" +
		"Name: com/example/\r\n" +
		"Sealed: true\r\n"

	m := ParseManifest(text)
	assert.Equal(t, "lib/alpha.jar lib/beta.jar", m.Attributes["Class-Path"])
	assert.Equal(t, "2.1", m.Version)
	assert.Equal(t, "Maven", m.CreatedBy)
	assert.Equal(t, "17.0.2", m.BuildJDK)
	assert.Empty(t, m.MainClass)
	assert.NotContains(t, m.Attributes, "Sealed")
}

func TestAnalyze_Library(t *testing.T) {
	var logs bytes.Buffer
	buf := buildJar(t, "", libraryFiles...)

	a, err := quietAnalyzer(&logs).Analyze(buf, "lib.jar")
	require.NoError(t, err)

	assert.Nil(t, a.Manifest)
	assert.Equal(t, ModeCentralDirectory, a.Metadata.Mode)
	assert.Equal(t, JarLibrary, a.Metadata.JarType)
	assert.Equal(t, "lib.jar", a.Metadata.FileName)
	assert.Equal(t, int64(len(buf)), a.Metadata.FileSize)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), a.Metadata.ExtractedAt)
	assert.Len(t, a.Metadata.AnalysisID, 36)

	assert.Equal(t, 5, a.Structure.TotalFiles)
	assert.Equal(t, 2, a.Structure.TotalClasses)
	assert.Equal(t, 3, a.Structure.TotalResources)
	assert.Equal(t, []string{"com.example", "com.example.util"}, a.Structure.Packages)
	assert.Empty(t, a.Structure.Dependencies)

	require.Len(t, a.Resources, 3)
	assert.Equal(t, "config.properties", a.Resources[0].Name)
	assert.Equal(t, EntryConfig, a.Resources[0].Type)
	assert.Equal(t, int64(len("greeting=hi\n")), a.Resources[0].Size)
	assert.NotContains(t, logs.String(), "central directory unreadable")
}

func TestAnalyze_ExecutableFromManifest(t *testing.T) {
	buf := buildJar(t, "",
		fixture{name: "META-INF/MANIFEST.MF", content: "Manifest-Version: 1.0\nMain-Class: com.example.Cli\nImplementation-Version: 3.4.0\n\n"},
		fixture{name: "com/example/Cli.class", content: "\xca\xfe\xba\xbe", deflate: true},
	)

	a, err := Analyze(buf, "cli.jar")
	require.NoError(t, err)
	require.NotNil(t, a.Manifest)
	assert.Equal(t, "com.example.Cli", a.Manifest.MainClass)
	assert.Equal(t, "3.4.0", a.Manifest.Version)
	assert.False(t, a.Manifest.Compressed)
	assert.Equal(t, JarExecutable, a.Metadata.JarType)
}

func TestAnalyze_CompressedManifest(t *testing.T) {
	buf := buildJar(t, "",
		fixture{name: "META-INF/MANIFEST.MF", content: "Manifest-Version: 1.0\n\n", deflate: true},
		fixture{name: "app/Main.class", content: "\xca\xfe\xba\xbe"},
	)

	a, err := Analyze(buf, "app.jar")
	require.NoError(t, err)
	require.NotNil(t, a.Manifest)
	assert.True(t, a.Manifest.Compressed)
	assert.Empty(t, a.Manifest.Attributes)
	assert.Equal(t, JarExecutable, a.Metadata.JarType, "Main.class path marks an executable")
}

func TestAnalyze_WebApp(t *testing.T) {
	buf := buildJar(t, "",
		fixture{name: "WEB-INF/web.xml", content: "<web-app/>"},
		fixture{name: "WEB-INF/lib/jackson-core-2.17.jar", content: "PK"},
		fixture{name: "WEB-INF/lib/jackson-core-2.17.jar.sha1", content: "abc"},
		fixture{name: "BOOT-INF/dependency/guava.jar", content: "PK"},
		fixture{name: "WEB-INF/classes/com/shop/Cart.class", content: "\xca\xfe\xba\xbe"},
	)

	a, err := Analyze(buf, "shop.war")
	require.NoError(t, err)
	assert.Equal(t, JarWebApp, a.Metadata.JarType)
	assert.Equal(t, []string{"jackson-core-2.17.jar", "jackson-core-2.17.jar.sha1", "guava.jar"}, a.Structure.Dependencies)
	assert.Equal(t, []string{"WEB-INF.classes.com.shop"}, a.Structure.Packages)
}

func TestFindEOCD_TrailingComment(t *testing.T) {
	plain := buildJar(t, "", libraryFiles...)
	commented := buildJar(t, strings.Repeat("c", 40000), libraryFiles...)

	want, err := findEOCD(plain)
	require.NoError(t, err)
	got, err := findEOCD(commented)
	require.NoError(t, err)

	assert.Equal(t, want.offset, got.offset)
	assert.Equal(t, want.entries, got.entries)
	assert.Equal(t, len(commented)-eocdSize-40000, got.eocdOffset)

	a, err := Analyze(commented, "commented.jar")
	require.NoError(t, err)
	assert.Equal(t, ModeCentralDirectory, a.Metadata.Mode)
	assert.Equal(t, 2, a.Structure.TotalClasses)
}

func TestFindEOCD_NotFound(t *testing.T) {
	_, err := findEOCD([]byte(strings.Repeat("x", 100)))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEOCDNotFound)
	assert.Equal(t, errors.ErrorTypeStructural, errors.TypeOf(err))

	_, err = findEOCD([]byte("PK"))
	assert.ErrorIs(t, err, errors.ErrEOCDNotFound)
}

func TestReadCentralDirectory_BadSignature(t *testing.T) {
	buf := buildJar(t, "", libraryFiles...)
	dir, err := findEOCD(buf)
	require.NoError(t, err)

	dir.offset = 0
	_, err = readCentralDirectory(buf, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadSignature)
}

func TestReadCentralDirectory_IgnoresEntryCount(t *testing.T) {
	buf := buildJar(t, "", libraryFiles...)
	dir, err := findEOCD(buf)
	require.NoError(t, err)

	for _, count := range []int{0, 2, 50} {
		d := dir
		d.entries = count
		records, err := readCentralDirectory(buf, d)
		require.NoError(t, err, "count %d", count)
		assert.Len(t, records, len(libraryFiles), "count %d", count)
	}

	// understate the count in the end record itself
	patched := append([]byte(nil), buf...)
	binary.LittleEndian.PutUint16(patched[dir.eocdOffset+8:], 2)
	binary.LittleEndian.PutUint16(patched[dir.eocdOffset+10:], 2)
	a, err := Analyze(patched, "miscounted.jar")
	require.NoError(t, err)
	assert.Equal(t, ModeCentralDirectory, a.Metadata.Mode)
	assert.Equal(t, 5, a.Structure.TotalFiles)

	empty := buildJar(t, "")
	dir, err = findEOCD(empty)
	require.NoError(t, err)
	records, err := readCentralDirectory(empty, dir)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAnalyze_FallbackOnTruncation(t *testing.T) {
	var logs bytes.Buffer
	full := buildJar(t, "", libraryFiles...)
	dir, err := findEOCD(full)
	require.NoError(t, err)

	truncated := full[:dir.offset+dir.size/2]
	a, err := quietAnalyzer(&logs).Analyze(truncated, "partial.jar")
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, a.Metadata.Mode)
	assert.Equal(t, JarLibrary, a.Metadata.JarType)
	assert.Contains(t, logs.String(), "central directory unreadable")

	var names []string
	for _, c := range a.Classes {
		names = append(names, c.FullName)
	}
	assert.ElementsMatch(t, []string{"com.example.App", "com.example.util.Strings"}, names)

	require.NotEmpty(t, a.Resources)
	assert.Equal(t, "config.properties", a.Resources[0].Name)
	assert.Equal(t, EntryConfig, a.Resources[0].Type)
	assert.Zero(t, a.Resources[0].Size)
}

func TestAnalyze_FallbackRecoversManifest(t *testing.T) {
	full := buildJar(t, "",
		fixture{name: "META-INF/MANIFEST.MF", content: "Manifest-Version: 1.0\nMain-Class: demo.Main\n\n"},
		fixture{name: "demo/Main.class", content: "\xca\xfe\xba\xbe"},
	)
	dir, err := findEOCD(full)
	require.NoError(t, err)

	a, err := Analyze(full[:dir.offset+10], "demo.jar")
	require.NoError(t, err)
	assert.Equal(t, ModeFallback, a.Metadata.Mode)
	require.NotNil(t, a.Manifest)
	assert.Equal(t, "demo.Main", a.Manifest.MainClass)
	assert.Equal(t, JarExecutable, a.Metadata.JarType)
}

func TestAnalyze_EmptyBuffer(t *testing.T) {
	_, err := Analyze(nil, "empty.jar")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeIO, errors.TypeOf(err))
	assert.ErrorIs(t, err, errors.ErrUnreadable)
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.jar")
	require.NoError(t, os.WriteFile(path, buildJar(t, "", libraryFiles...), 0o644))

	a, err := NewAnalyzer().AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "lib.jar", a.Metadata.FileName)
	assert.Equal(t, 2, a.Structure.TotalClasses)

	_, err = NewAnalyzer().AnalyzeFile(context.Background(), filepath.Join(dir, "missing.jar"))
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	_, err = NewAnalyzer().AnalyzeFile(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrInvalidFilePath)
}

func TestAnalyzeReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer().AnalyzeReader(ctx, bytes.NewReader([]byte("PK")), "x.jar")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeIO, errors.TypeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}
